package domain

import (
	"context"
	"errors"

	"github.com/kolopay/kolopay/internal/config"
)

type PayinRequest struct {
	Reference    string
	Amount       int64
	PayerContact string
	Channel      string
}

type PayinResult struct {
	ProviderTxID string
	Status       PayinStatus
	Fees         int64
	Raw          []byte
}

type PayoutRequest struct {
	Reference string
	Amount    int64
	Contact   string
	Channel   string
}

type PayoutResult struct {
	ProviderTxID string
	Status       PayinStatus
	Fees         int64
	SentAmount   int64
	Raw          []byte
}

// WebhookResult is the normalized settlement callback for a payout.
type WebhookResult struct {
	Reference    string
	ProviderTxID string
	Succeeded    bool
	Reason       string
	Raw          []byte
}

// Adapter is one provider's API client. Implementations normalize the
// provider's status vocabulary to PayinStatus and never mutate local state.
type Adapter interface {
	Provider() string
	InitiatePayIn(ctx context.Context, req PayinRequest) (PayinResult, error)
	VerifyPayIn(ctx context.Context, providerTxID string) (PayinResult, error)
	InitiatePayOut(ctx context.Context, req PayoutRequest) (PayoutResult, error)
	VerifyPayOut(ctx context.Context, providerTxID string) (PayoutResult, error)
	ParsePayoutWebhook(payload []byte) (WebhookResult, error)
}

// AdapterFactory builds an Adapter from injected provider credentials.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg config.ProviderConfig) (Adapter, error)
}

var (
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_provider_config")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrProviderRejected = errors.New("provider_rejected")
	ErrOrderNotFound    = errors.New("order_not_found")
	ErrPayinNotFound    = errors.New("payin_not_found")
)
