package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidUser        = errors.New("invalid_user")
	ErrNoAvailableBalance = errors.New("no_available_balance")
	ErrWithdrawInProgress = errors.New("withdraw_in_progress")
	ErrPayoutNotFound     = errors.New("payout_not_found")
)

// WithdrawRequest asks the provider to send a seller their full available
// balance. Contact and Channel are forwarded verbatim to the adapter.
type WithdrawRequest struct {
	SellerID snowflake.ID `json:"seller_id"`
	Provider string       `json:"provider"`
	Contact  string       `json:"contact"`
	Channel  string       `json:"channel"`
}

type Service interface {
	// WithdrawAll drains the seller's available balance through the named
	// provider. The wallet is only debited once the provider confirms.
	WithdrawAll(ctx context.Context, req WithdrawRequest) (*Transaction, error)

	// HandleWebhook settles a payout from a provider callback. The signature
	// is the provider's HMAC of the raw payload; a mismatch is acknowledged
	// but changes nothing. Unknown references are acknowledged without error
	// so the provider stops redelivering.
	HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) error

	// ReconcileStuckPayouts re-verifies payouts that have sat PENDING past
	// the configured threshold and returns how many were inspected.
	ReconcileStuckPayouts(ctx context.Context) (int, error)

	ListBySeller(ctx context.Context, sellerID snowflake.ID, limit int) ([]Transaction, error)
}
