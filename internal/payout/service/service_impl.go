package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/clock"
	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/gateway/adapters"
	gatewaydomain "github.com/kolopay/kolopay/internal/gateway/domain"
	obsmetrics "github.com/kolopay/kolopay/internal/observability/metrics"
	"github.com/kolopay/kolopay/internal/payout/domain"
	walletdomain "github.com/kolopay/kolopay/internal/wallet/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cfg       config.Config
	Policy    *config.PolicyHolder
	Clock     clock.Clock
	Repo      domain.Repository
	WalletSvc walletdomain.Service
	Registry  *adapters.Registry
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	cfg       config.Config
	policy    *config.PolicyHolder
	clock     clock.Clock
	repo      domain.Repository
	walletSvc walletdomain.Service
	registry  *adapters.Registry
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payout.service"),
		genID:     p.GenID,
		cfg:       p.Cfg,
		policy:    p.Policy,
		clock:     p.Clock,
		repo:      p.Repo,
		walletSvc: p.WalletSvc,
		registry:  p.Registry,
	}
}

func (s *Service) adapterFor(provider string) (gatewaydomain.Adapter, config.ProviderConfig, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	var providerCfg config.ProviderConfig
	switch provider {
	case "payrail":
		providerCfg = s.cfg.Payrail
	case "mobicash":
		providerCfg = s.cfg.Mobicash
	default:
		return nil, config.ProviderConfig{}, gatewaydomain.ErrProviderNotFound
	}
	adapter, err := s.registry.NewAdapter(provider, providerCfg)
	if err != nil {
		return nil, config.ProviderConfig{}, err
	}
	return adapter, providerCfg, nil
}

func (s *Service) WithdrawAll(ctx context.Context, req domain.WithdrawRequest) (*domain.Transaction, error) {
	if req.SellerID == 0 {
		return nil, domain.ErrInvalidUser
	}
	adapter, _, err := s.adapterFor(req.Provider)
	if err != nil {
		return nil, err
	}

	account, err := s.walletSvc.GetBalance(ctx, req.SellerID)
	if err != nil && !errors.Is(err, walletdomain.ErrAccountNotFound) {
		return nil, err
	}
	if account.Available <= 0 {
		return nil, domain.ErrNoAvailableBalance
	}

	now := s.clock.Now()
	payout := domain.Transaction{
		ID:            s.genID.Generate(),
		SellerID:      req.SellerID,
		Provider:      adapter.Provider(),
		Amount:        account.Available,
		Reference:     ulid.Make().String(),
		Status:        domain.StatusPending,
		PayoutContact: req.Contact,
		Channel:       req.Channel,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Claim the seller's single withdrawal slot before talking to the
	// provider, so a double-submit cannot send the balance twice. The
	// pre-check gives the common case a clean error; the partial unique
	// index on PENDING rows settles the race when two claims interleave.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.repo.FindPendingBySeller(ctx, tx, req.SellerID)
		if err != nil {
			return err
		}
		if pending != nil {
			return domain.ErrWithdrawInProgress
		}
		inserted, err := s.repo.Insert(ctx, tx, &payout)
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrWithdrawInProgress
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err := adapter.InitiatePayOut(ctx, gatewaydomain.PayoutRequest{
		Reference: payout.Reference,
		Amount:    payout.Amount,
		Contact:   req.Contact,
		Channel:   req.Channel,
	})
	if err != nil {
		// Nothing was debited; free the slot so the seller can retry.
		return s.settle(ctx, payout.Reference, settlement{
			Status: domain.StatusFailed,
			Reason: err.Error(),
		})
	}

	switch result.Status {
	case domain.StatusSuccess:
		return s.settle(ctx, payout.Reference, settlement{
			Status:       domain.StatusSuccess,
			ProviderTxID: result.ProviderTxID,
			SentAmount:   result.SentAmount,
			Fees:         result.Fees,
		})
	case domain.StatusPending:
		payout.ProviderTxID = result.ProviderTxID
		payout.Fees = result.Fees
		payout.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, s.db, &payout); err != nil {
			return nil, err
		}
		s.log.Info("payout initiated",
			zap.String("payout_id", payout.ID.String()),
			zap.String("reference", payout.Reference),
			zap.String("provider", payout.Provider),
		)
		return &payout, nil
	default:
		return s.settle(ctx, payout.Reference, settlement{
			Status:       result.Status,
			ProviderTxID: result.ProviderTxID,
			Reason:       fmt.Sprintf("initiation returned %s", result.Status),
		})
	}
}

func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) error {
	adapter, providerCfg, err := s.adapterFor(provider)
	if err != nil {
		obsmetrics.Default().IncWebhookReceived(provider, "unknown_provider")
		return err
	}

	// Ack and drop on a bad signature: anyone can hit the endpoint, and a
	// forged callback must not settle a payout.
	if providerCfg.WebhookSecret != "" && !validSignature(payload, signature, providerCfg.WebhookSecret) {
		obsmetrics.Default().IncWebhookReceived(adapter.Provider(), "bad_signature")
		s.log.Warn("payout webhook signature mismatch",
			zap.String("provider", adapter.Provider()),
		)
		return nil
	}

	hook, err := adapter.ParsePayoutWebhook(payload)
	if err != nil {
		obsmetrics.Default().IncWebhookReceived(adapter.Provider(), "invalid_payload")
		return err
	}

	payout, err := s.repo.FindByReference(ctx, s.db, hook.Reference)
	if err != nil {
		return err
	}
	if payout == nil {
		// Ack and drop: a reference we never issued must not trigger
		// provider redelivery loops.
		obsmetrics.Default().IncWebhookReceived(adapter.Provider(), "unmatched")
		obsmetrics.Default().IncWebhookUnmatched(adapter.Provider())
		s.log.Warn("payout webhook for unknown reference",
			zap.String("provider", adapter.Provider()),
			zap.String("reference", hook.Reference),
		)
		return nil
	}

	status := domain.StatusFailed
	if hook.Succeeded {
		status = domain.StatusSuccess
	}
	_, err = s.settle(ctx, hook.Reference, settlement{
		Status:       status,
		ProviderTxID: hook.ProviderTxID,
		Reason:       hook.Reason,
		ViaWebhook:   true,
	})
	if err != nil {
		obsmetrics.Default().IncWebhookReceived(adapter.Provider(), "error")
		return err
	}
	obsmetrics.Default().IncWebhookReceived(adapter.Provider(), "ok")
	return nil
}

// validSignature checks the hex-encoded HMAC-SHA256 of the raw payload
// against the signature header the provider sent.
func validSignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

func (s *Service) ReconcileStuckPayouts(ctx context.Context) (int, error) {
	threshold := s.policy.Current().PayoutStuckThreshold
	before := s.clock.Now().Add(-threshold)

	stuck, err := s.repo.ListStuckPending(ctx, s.db, before, 50)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, payout := range stuck {
		if err := s.reconcileOne(ctx, payout); err != nil {
			s.log.Warn("payout reconcile item failed",
				zap.String("payout_id", payout.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("payout %s: %w", payout.ID, err))
		}
	}
	return len(stuck), errors.Join(errs...)
}

func (s *Service) reconcileOne(ctx context.Context, payout domain.Transaction) error {
	// Initiation never reached the provider: no money could have moved.
	if payout.ProviderTxID == "" {
		_, err := s.settle(ctx, payout.Reference, settlement{
			Status: domain.StatusFailed,
			Reason: "initiation never completed",
		})
		return err
	}

	adapter, _, err := s.adapterFor(payout.Provider)
	if err != nil {
		return err
	}
	result, err := adapter.VerifyPayOut(ctx, payout.ProviderTxID)
	if err != nil {
		// Inconclusive; the next sweep will retry.
		return nil
	}

	switch result.Status {
	case domain.StatusSuccess:
		_, err := s.settle(ctx, payout.Reference, settlement{
			Status:       domain.StatusSuccess,
			ProviderTxID: result.ProviderTxID,
			SentAmount:   result.SentAmount,
			Fees:         result.Fees,
		})
		return err
	case domain.StatusFailed, domain.StatusCanceled:
		_, err := s.settle(ctx, payout.Reference, settlement{
			Status:       result.Status,
			ProviderTxID: result.ProviderTxID,
			Reason:       "provider reported " + string(result.Status),
		})
		return err
	default:
		return nil
	}
}

func (s *Service) ListBySeller(ctx context.Context, sellerID snowflake.ID, limit int) ([]domain.Transaction, error) {
	if sellerID == 0 {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.ListBySeller(ctx, s.db, sellerID, limit)
}

type settlement struct {
	Status       domain.Status
	ProviderTxID string
	SentAmount   int64
	Fees         int64
	Reason       string
	ViaWebhook   bool
}

// settle moves a payout to a terminal status. The wallet debit and the status
// flip share one transaction keyed on the payout reference, so a webhook and
// a reconcile sweep racing each other debit the seller exactly once.
func (s *Service) settle(ctx context.Context, reference string, out settlement) (*domain.Transaction, error) {
	var (
		settled domain.Transaction
		changed bool
	)
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.repo.FindByReferenceForUpdate(ctx, tx, reference)
		if err != nil {
			return err
		}
		if payout == nil {
			return domain.ErrPayoutNotFound
		}
		// Already terminal: redeliveries and racing sweeps see the settled
		// row and change nothing.
		if payout.Status != domain.StatusPending {
			settled = *payout
			return nil
		}

		payout.Status = out.Status
		payout.UpdatedAt = now
		if out.ProviderTxID != "" {
			payout.ProviderTxID = out.ProviderTxID
		}
		if out.ViaWebhook {
			payout.WebhookReceived = true
		}

		if out.Status == domain.StatusSuccess {
			payout.SentAmount = out.SentAmount
			if payout.SentAmount == 0 {
				payout.SentAmount = payout.Amount
			}
			payout.Fees = out.Fees
			if _, err := s.walletSvc.ApplyTx(ctx, tx, walletdomain.Movement{
				UserID:        payout.SellerID,
				Kind:          walletdomain.MovementDebit,
				Amount:        payout.Amount,
				ReferenceID:   payout.Reference,
				ReferenceType: walletdomain.ReferenceTypePayout,
				Description:   "withdrawal to " + payout.Provider,
			}); err != nil {
				return err
			}
		} else {
			payout.FailureReason = out.Reason
		}

		if err := s.repo.Update(ctx, tx, payout); err != nil {
			return err
		}
		settled = *payout
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		obsmetrics.Default().IncPayoutSettled(settled.Provider, string(settled.Status))
		s.log.Info("payout settled",
			zap.String("payout_id", settled.ID.String()),
			zap.String("reference", settled.Reference),
			zap.String("status", string(settled.Status)),
		)
	}
	return &settled, nil
}
