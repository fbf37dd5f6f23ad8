package payrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/gateway/domain"
)

const (
	initiateTimeout = 20 * time.Second
	verifyTimeout   = 15 * time.Second
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "payrail"
}

func (f *Factory) NewAdapter(cfg config.ProviderConfig) (domain.Adapter, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiSecret: strings.TrimSpace(cfg.APISecret),
		client:    &http.Client{Timeout: initiateTimeout},
	}, nil
}

// Adapter talks to the aggregator's REST API. All amounts cross the wire in
// XOF minor units, same as the wallet.
type Adapter struct {
	baseURL   string
	apiSecret string
	client    *http.Client
}

func (a *Adapter) Provider() string { return "payrail" }

type paymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Fees   int64  `json:"fees"`
}

func (a *Adapter) InitiatePayIn(ctx context.Context, req domain.PayinRequest) (domain.PayinResult, error) {
	body := map[string]any{
		"reference": req.Reference,
		"amount":    req.Amount,
		"currency":  "XOF",
		"channel":   req.Channel,
		"customer": map[string]string{
			"phone": req.PayerContact,
		},
	}

	raw, err := a.do(ctx, http.MethodPost, "/payments", body)
	if err != nil {
		return domain.PayinResult{}, err
	}

	var resp paymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.PayinResult{}, domain.ErrInvalidPayload
	}
	return domain.PayinResult{
		ProviderTxID: resp.ID,
		Status:       normalizeStatus(resp.Status),
		Fees:         resp.Fees,
		Raw:          raw,
	}, nil
}

func (a *Adapter) VerifyPayIn(ctx context.Context, providerTxID string) (domain.PayinResult, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	raw, err := a.do(ctx, http.MethodGet, "/payments/"+providerTxID, nil)
	if err != nil {
		return domain.PayinResult{}, err
	}

	var resp paymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.PayinResult{}, domain.ErrInvalidPayload
	}
	return domain.PayinResult{
		ProviderTxID: resp.ID,
		Status:       normalizeStatus(resp.Status),
		Fees:         resp.Fees,
		Raw:          raw,
	}, nil
}

type transferResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Fees       int64  `json:"fees"`
	SentAmount int64  `json:"sent_amount"`
}

func (a *Adapter) InitiatePayOut(ctx context.Context, req domain.PayoutRequest) (domain.PayoutResult, error) {
	body := map[string]any{
		"reference": req.Reference,
		"amount":    req.Amount,
		"currency":  "XOF",
		"channel":   req.Channel,
		"recipient": map[string]string{
			"phone": req.Contact,
		},
	}

	raw, err := a.do(ctx, http.MethodPost, "/transfers", body)
	if err != nil {
		return domain.PayoutResult{}, err
	}

	var resp transferResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.PayoutResult{}, domain.ErrInvalidPayload
	}
	return domain.PayoutResult{
		ProviderTxID: resp.ID,
		Status:       normalizeStatus(resp.Status),
		Fees:         resp.Fees,
		SentAmount:   resp.SentAmount,
		Raw:          raw,
	}, nil
}

func (a *Adapter) VerifyPayOut(ctx context.Context, providerTxID string) (domain.PayoutResult, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	raw, err := a.do(ctx, http.MethodGet, "/transfers/"+providerTxID, nil)
	if err != nil {
		return domain.PayoutResult{}, err
	}

	var resp transferResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.PayoutResult{}, domain.ErrInvalidPayload
	}
	return domain.PayoutResult{
		ProviderTxID: resp.ID,
		Status:       normalizeStatus(resp.Status),
		Fees:         resp.Fees,
		SentAmount:   resp.SentAmount,
		Raw:          raw,
	}, nil
}

type transferWebhook struct {
	Event string `json:"event"`
	Data  struct {
		ID        string `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Reason    string `json:"reason"`
	} `json:"data"`
}

func (a *Adapter) ParsePayoutWebhook(payload []byte) (domain.WebhookResult, error) {
	var hook transferWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return domain.WebhookResult{}, domain.ErrInvalidPayload
	}
	if hook.Data.Reference == "" {
		return domain.WebhookResult{}, domain.ErrInvalidPayload
	}
	return domain.WebhookResult{
		Reference:    hook.Data.Reference,
		ProviderTxID: hook.Data.ID,
		Succeeded:    normalizeStatus(hook.Data.Status) == domain.StatusSuccess,
		Reason:       hook.Data.Reason,
		Raw:          payload,
	}, nil
}

func (a *Adapter) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("payrail %s %s: %w (http %d)", method, path, domain.ErrProviderRejected, resp.StatusCode)
	}
	return raw, nil
}

func normalizeStatus(status string) domain.PayinStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "successful":
		return domain.StatusSuccess
	case "failed":
		return domain.StatusFailed
	case "cancelled", "canceled":
		return domain.StatusCanceled
	default:
		return domain.StatusPending
	}
}
