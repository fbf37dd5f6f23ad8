package mobicash

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

// Telecom status codes.
const (
	codePending  = 0
	codeSuccess  = 1
	codeFailed   = 2
	codeCanceled = 3
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "mobicash"
}

func (f *Factory) NewAdapter(cfg config.ProviderConfig) (domain.Adapter, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.MerchantID) == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		merchantID: strings.TrimSpace(cfg.MerchantID),
		client:     &http.Client{Timeout: initiateTimeout},
	}, nil
}

// Adapter talks to the telecom's mobile-money API, which reports status as
// numeric codes.
type Adapter struct {
	baseURL    string
	apiKey     string
	merchantID string
	client     *http.Client
}

func (a *Adapter) Provider() string { return "mobicash" }

type cashResponse struct {
	TransactionID string `json:"transactionId"`
	StatusCode    int    `json:"statusCode"`
	Fees          int64  `json:"fees"`
	SentAmount    int64  `json:"sentAmount"`
}

func (a *Adapter) InitiatePayIn(ctx context.Context, req domain.PayinRequest) (domain.PayinResult, error) {
	body := map[string]any{
		"externalId": req.Reference,
		"amount":     req.Amount,
		"currency":   "XOF",
		"channel":    req.Channel,
		"subscriber": req.PayerContact,
		"merchantId": a.merchantID,
	}

	raw, err := a.do(ctx, "/v1/cashin/initiate", body)
	if err != nil {
		return domain.PayinResult{}, err
	}

	var resp cashResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.PayinResult{}, domain.ErrInvalidPayload
	}
	return domain.PayinResult{
		ProviderTxID: resp.TransactionID,
		Status:       normalizeCode(resp.StatusCode),
		Fees:         resp.Fees,
		Raw:          raw,
	}, nil
}

func (a *Adapter) VerifyPayIn(ctx context.Context, providerTxID string) (domain.PayinResult, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	raw, err := a.do(ctx, "/v1/cashin/status", map[string]any{
		"transactionId": providerTxID,
		"merchantId":    a.merchantID,
	})
	if err != nil {
		return domain.PayinResult{}, err
	}

	var resp cashResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.PayinResult{}, domain.ErrInvalidPayload
	}
	return domain.PayinResult{
		ProviderTxID: resp.TransactionID,
		Status:       normalizeCode(resp.StatusCode),
		Fees:         resp.Fees,
		Raw:          raw,
	}, nil
}

func (a *Adapter) InitiatePayOut(ctx context.Context, req domain.PayoutRequest) (domain.PayoutResult, error) {
	body := map[string]any{
		"externalId": req.Reference,
		"amount":     req.Amount,
		"currency":   "XOF",
		"channel":    req.Channel,
		"subscriber": req.Contact,
		"merchantId": a.merchantID,
	}

	raw, err := a.do(ctx, "/v1/cashout/initiate", body)
	if err != nil {
		return domain.PayoutResult{}, err
	}

	var resp cashResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.PayoutResult{}, domain.ErrInvalidPayload
	}
	return domain.PayoutResult{
		ProviderTxID: resp.TransactionID,
		Status:       normalizeCode(resp.StatusCode),
		Fees:         resp.Fees,
		SentAmount:   resp.SentAmount,
		Raw:          raw,
	}, nil
}

func (a *Adapter) VerifyPayOut(ctx context.Context, providerTxID string) (domain.PayoutResult, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	raw, err := a.do(ctx, "/v1/cashout/status", map[string]any{
		"transactionId": providerTxID,
		"merchantId":    a.merchantID,
	})
	if err != nil {
		return domain.PayoutResult{}, err
	}

	var resp cashResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.PayoutResult{}, domain.ErrInvalidPayload
	}
	return domain.PayoutResult{
		ProviderTxID: resp.TransactionID,
		Status:       normalizeCode(resp.StatusCode),
		Fees:         resp.Fees,
		SentAmount:   resp.SentAmount,
		Raw:          raw,
	}, nil
}

type cashoutWebhook struct {
	ExternalID    string `json:"externalId"`
	TransactionID string `json:"transactionId"`
	StatusCode    int    `json:"statusCode"`
	Message       string `json:"message"`
}

func (a *Adapter) ParsePayoutWebhook(payload []byte) (domain.WebhookResult, error) {
	var hook cashoutWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return domain.WebhookResult{}, domain.ErrInvalidPayload
	}
	if hook.ExternalID == "" {
		return domain.WebhookResult{}, domain.ErrInvalidPayload
	}
	return domain.WebhookResult{
		Reference:    hook.ExternalID,
		ProviderTxID: hook.TransactionID,
		Succeeded:    normalizeCode(hook.StatusCode) == domain.StatusSuccess,
		Reason:       hook.Message,
		Raw:          payload,
	}, nil
}

func (a *Adapter) do(ctx context.Context, path string, body any) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", a.apiKey)
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
		return nil, fmt.Errorf("mobicash POST %s: %w (http %d)", path, domain.ErrProviderRejected, resp.StatusCode)
	}
	return raw, nil
}

func normalizeCode(code int) domain.PayinStatus {
	switch code {
	case codeSuccess:
		return domain.StatusSuccess
	case codeFailed:
		return domain.StatusFailed
	case codeCanceled:
		return domain.StatusCanceled
	default:
		return domain.StatusPending
	}
}
