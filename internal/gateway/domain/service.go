package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type InitiatePayinRequest struct {
	OrderID      snowflake.ID
	ClientID     snowflake.ID
	Provider     string
	PayerContact string
	Channel      string
}

type Service interface {
	// InitiatePayIn asks the provider to collect the order total. An accepted
	// initiation creates the PayinTransaction and moves the order to
	// PAYMENT_PENDING; escrow only locks once the pay-in verifies SUCCESS.
	InitiatePayIn(ctx context.Context, req InitiatePayinRequest) (PayinTransaction, error)
	// VerifyPayIn re-checks a pay-in against the provider. A locally settled
	// SUCCESS returns immediately without a provider call; inconclusive
	// provider answers leave the transaction PENDING.
	VerifyPayIn(ctx context.Context, providerTxID string) (PayinTransaction, error)
	// PollPendingPayins verifies recent PENDING pay-ins in one bounded batch.
	// Returns how many were inspected.
	PollPendingPayins(ctx context.Context, batchSize int) (int, error)
}
