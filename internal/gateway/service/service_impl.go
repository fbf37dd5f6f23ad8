package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/clock"
	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/gateway/adapters"
	"github.com/kolopay/kolopay/internal/gateway/domain"
	obsmetrics "github.com/kolopay/kolopay/internal/observability/metrics"
	orderdomain "github.com/kolopay/kolopay/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Policy   *config.PolicyHolder
	Clock    clock.Clock
	Repo     domain.Repository
	OrderSvc orderdomain.Service
	Registry *adapters.Registry
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	cfg      config.Config
	policy   *config.PolicyHolder
	clock    clock.Clock
	repo     domain.Repository
	orderSvc orderdomain.Service
	registry *adapters.Registry
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("gateway.service"),
		genID:    p.GenID,
		cfg:      p.Cfg,
		policy:   p.Policy,
		clock:    p.Clock,
		repo:     p.Repo,
		orderSvc: p.OrderSvc,
		registry: p.Registry,
	}
}

func (s *Service) adapterFor(provider string) (domain.Adapter, config.ProviderConfig, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	var providerCfg config.ProviderConfig
	switch provider {
	case "payrail":
		providerCfg = s.cfg.Payrail
	case "mobicash":
		providerCfg = s.cfg.Mobicash
	default:
		return nil, config.ProviderConfig{}, domain.ErrProviderNotFound
	}
	adapter, err := s.registry.NewAdapter(provider, providerCfg)
	if err != nil {
		return nil, config.ProviderConfig{}, err
	}
	return adapter, providerCfg, nil
}

func (s *Service) InitiatePayIn(ctx context.Context, req domain.InitiatePayinRequest) (domain.PayinTransaction, error) {
	adapter, providerCfg, err := s.adapterFor(req.Provider)
	if err != nil {
		return domain.PayinTransaction{}, err
	}

	order, err := s.orderSvc.GetByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, orderdomain.ErrOrderNotFound) {
			return domain.PayinTransaction{}, domain.ErrOrderNotFound
		}
		return domain.PayinTransaction{}, err
	}

	payinID := s.genID.Generate()
	result, err := adapter.InitiatePayIn(ctx, domain.PayinRequest{
		Reference:    payinID.String(),
		Amount:       order.TotalAmount,
		PayerContact: req.PayerContact,
		Channel:      req.Channel,
	})
	if err != nil {
		return domain.PayinTransaction{}, err
	}
	if result.Status != domain.StatusPending && result.Status != domain.StatusSuccess {
		return domain.PayinTransaction{}, fmt.Errorf("initiation returned %s: %w", result.Status, domain.ErrProviderRejected)
	}

	fees := result.Fees
	// Providers rarely quote fees at initiation; fall back to the configured
	// rate so the stored row carries an estimate instead of zero.
	if fees == 0 && providerCfg.FeeBps > 0 {
		fees = order.TotalAmount * providerCfg.FeeBps / 10000
	}

	now := s.clock.Now()
	payin := domain.PayinTransaction{
		ID:           payinID,
		OrderID:      order.ID,
		SellerID:     order.SellerID,
		ClientID:     order.BuyerID,
		Provider:     adapter.Provider(),
		ProviderTxID: result.ProviderTxID,
		Amount:       order.TotalAmount,
		Fees:         fees,
		Status:       result.Status,
		PayerContact: req.PayerContact,
		Channel:      req.Channel,
		RawResponse:  result.Raw,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &payin); err != nil {
			return err
		}
		if _, err := s.orderSvc.AttachPayinTx(ctx, tx, order.ID, payin.ID); err != nil {
			return err
		}
		// Some channels settle synchronously; lock escrow right away.
		if result.Status == domain.StatusSuccess {
			locked, err := s.orderSvc.LockEscrowTx(ctx, tx, order.ID, payin.ID)
			if err != nil {
				return err
			}
			payin.NetAmount = locked.NetAmount
			payin.SellerCredited = true
			return s.repo.MarkSellerCredited(ctx, tx, payin.ID, locked.NetAmount, now)
		}
		return nil
	})
	if err != nil {
		return domain.PayinTransaction{}, err
	}

	s.log.Info("payin initiated",
		zap.String("payin_id", payin.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("provider", payin.Provider),
		zap.String("status", string(payin.Status)),
	)
	return payin, nil
}

func (s *Service) VerifyPayIn(ctx context.Context, providerTxID string) (domain.PayinTransaction, error) {
	providerTxID = strings.TrimSpace(providerTxID)
	if providerTxID == "" {
		return domain.PayinTransaction{}, domain.ErrPayinNotFound
	}

	payin, err := s.repo.FindByProviderTxID(ctx, s.db, providerTxID)
	if err != nil {
		return domain.PayinTransaction{}, err
	}
	if payin == nil {
		return domain.PayinTransaction{}, domain.ErrPayinNotFound
	}
	// Already settled locally; never ask the provider again.
	if payin.Status == domain.StatusSuccess && payin.SellerCredited {
		return *payin, nil
	}

	adapter, _, err := s.adapterFor(payin.Provider)
	if err != nil {
		return domain.PayinTransaction{}, err
	}

	result, err := adapter.VerifyPayIn(ctx, providerTxID)
	if err != nil {
		// Inconclusive answer: the transaction stays PENDING for the sweep.
		s.log.Warn("payin verification inconclusive",
			zap.String("provider_tx_id", providerTxID),
			zap.Error(err),
		)
		return *payin, nil
	}

	switch result.Status {
	case domain.StatusSuccess:
		return s.settleSuccess(ctx, payin.ID, result)
	case domain.StatusFailed, domain.StatusCanceled:
		now := s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, s.db, payin.ID, result.Status, result.Fees, result.Raw, now); err != nil {
			return domain.PayinTransaction{}, err
		}
		obsmetrics.Default().IncPayinVerified(payin.Provider, string(result.Status))
		payin.Status = result.Status
		payin.Fees = result.Fees
		return *payin, nil
	default:
		return *payin, nil
	}
}

// settleSuccess marks the pay-in SUCCESS and locks order escrow in one
// transaction, re-reading the row under lock so concurrent verifies cannot
// credit the seller twice.
func (s *Service) settleSuccess(ctx context.Context, payinID snowflake.ID, result domain.PayinResult) (domain.PayinTransaction, error) {
	var settled domain.PayinTransaction
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payin, err := s.repo.FindByProviderTxIDForUpdate(ctx, tx, result.ProviderTxID)
		if err != nil {
			return err
		}
		if payin == nil {
			return domain.ErrPayinNotFound
		}
		if payin.ID != payinID {
			return domain.ErrPayinNotFound
		}
		if payin.Status == domain.StatusSuccess && payin.SellerCredited {
			settled = *payin
			return nil
		}

		if err := s.repo.UpdateStatus(ctx, tx, payin.ID, domain.StatusSuccess, result.Fees, result.Raw, now); err != nil {
			return err
		}
		order, err := s.orderSvc.LockEscrowTx(ctx, tx, payin.OrderID, payin.ID)
		if err != nil {
			return err
		}
		if err := s.repo.MarkSellerCredited(ctx, tx, payin.ID, order.NetAmount, now); err != nil {
			return err
		}

		payin.Status = domain.StatusSuccess
		payin.SellerCredited = true
		payin.NetAmount = order.NetAmount
		payin.Fees = result.Fees
		settled = *payin
		return nil
	})
	if err != nil {
		return domain.PayinTransaction{}, err
	}

	obsmetrics.Default().IncPayinVerified(settled.Provider, string(domain.StatusSuccess))
	s.log.Info("payin settled",
		zap.String("payin_id", settled.ID.String()),
		zap.String("order_id", settled.OrderID.String()),
	)
	return settled, nil
}

func (s *Service) PollPendingPayins(ctx context.Context, batchSize int) (int, error) {
	window := s.policy.Current().PayinPollWindow
	since := s.clock.Now().Add(-window)

	pending, err := s.repo.ListPendingSince(ctx, s.db, since, batchSize)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, payin := range pending {
		if _, err := s.VerifyPayIn(ctx, payin.ProviderTxID); err != nil {
			s.log.Warn("payin poll item failed",
				zap.String("payin_id", payin.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("payin %s: %w", payin.ID, err))
		}
	}
	return len(pending), errors.Join(errs...)
}
