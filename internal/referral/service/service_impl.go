package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/referral/domain"
	userdomain "github.com/kolopay/kolopay/internal/user/domain"
	walletdomain "github.com/kolopay/kolopay/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Policy    *config.PolicyHolder
	Repo      domain.Repository
	UserRepo  userdomain.Repository
	WalletSvc walletdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	policy    *config.PolicyHolder
	repo      domain.Repository
	userRepo  userdomain.Repository
	walletSvc walletdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("referral.service"),
		genID:     p.GenID,
		policy:    p.Policy,
		repo:      p.Repo,
		userRepo:  p.UserRepo,
		walletSvc: p.WalletSvc,
	}
}

func (s *Service) ApplyReferralCode(ctx context.Context, userID snowflake.ID, code string) (domain.Referral, error) {
	if userID == 0 {
		return domain.Referral{}, domain.ErrInvalidUser
	}

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return domain.Referral{}, err
	}
	if user == nil {
		return domain.Referral{}, domain.ErrInvalidUser
	}
	if user.ReferredBy != nil {
		return domain.Referral{}, domain.ErrAlreadyReferred
	}

	policy := s.policy.Current()
	if !roleAllowed(policy.ReferralRoles, string(user.Role)) {
		return domain.Referral{}, domain.ErrRoleNotAllowed
	}
	if time.Now().UTC().Sub(user.CreatedAt) > policy.ReferralSignupWindow {
		return domain.Referral{}, domain.ErrWindowExpired
	}

	referrer, err := s.userRepo.FindByReferralCode(ctx, s.db, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return domain.Referral{}, err
	}
	if referrer == nil {
		return domain.Referral{}, domain.ErrCodeNotFound
	}
	if referrer.ID == userID {
		return domain.Referral{}, domain.ErrSelfReferral
	}

	now := time.Now().UTC()
	referral := domain.Referral{
		ID:         s.genID.Generate(),
		ReferrerID: referrer.ID,
		ReferredID: userID,
		Role:       string(user.Role),
		Status:     domain.ReferralStatusActive,
		CreatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertReferral(ctx, tx, &referral)
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrAlreadyReferred
		}
		linked, err := s.userRepo.SetReferredBy(ctx, tx, userID, referrer.ID)
		if err != nil {
			return err
		}
		if !linked {
			return domain.ErrAlreadyReferred
		}
		return s.repo.UpsertStats(ctx, tx, referrer.ID, 0, 1, now)
	})
	if err != nil {
		return domain.Referral{}, err
	}

	s.log.Info("referral attached",
		zap.String("referrer_id", referrer.ID.String()),
		zap.String("referred_id", userID.String()),
	)
	return referral, nil
}

func (s *Service) OnOrderCompleted(ctx context.Context, completed domain.CompletedOrder) error {
	if completed.SellerID == 0 || completed.OrderID == 0 {
		return domain.ErrInvalidUser
	}
	if completed.NetAmount <= 0 {
		return nil
	}

	level1Ref, err := s.repo.FindActiveByReferred(ctx, s.db, completed.SellerID)
	if err != nil {
		return err
	}
	if level1Ref == nil {
		return nil
	}

	rate := s.policy.Current().ReferralLevel1Bps
	level1 := completed.NetAmount * rate / 10000
	if level1 <= 0 {
		return nil
	}

	if err := s.awardImmediate(ctx, awardRequest{
		referrerID:     level1Ref.ReferrerID,
		referredID:     completed.SellerID,
		sourceID:       completed.OrderID,
		sourceType:     domain.SourceTypeOrder,
		commissionType: domain.CommissionTypeSellerSale,
		amount:         level1,
		rateBps:        rate,
	}); err != nil {
		return err
	}

	// One upline hop at most: the level-1 referrer's own referrer gets half.
	level2Ref, err := s.repo.FindActiveByReferred(ctx, s.db, level1Ref.ReferrerID)
	if err != nil {
		return err
	}
	if level2Ref == nil {
		return nil
	}
	level2 := level1 / 2
	if level2 <= 0 {
		return nil
	}

	return s.awardImmediate(ctx, awardRequest{
		referrerID:     level2Ref.ReferrerID,
		referredID:     level1Ref.ReferrerID,
		sourceID:       completed.OrderID,
		sourceType:     domain.SourceTypeOrder,
		commissionType: domain.CommissionTypeSellerSaleLevel2,
		amount:         level2,
		rateBps:        rate / 2,
	})
}

type awardRequest struct {
	referrerID     snowflake.ID
	referredID     snowflake.ID
	sourceID       snowflake.ID
	sourceType     domain.SourceType
	commissionType domain.CommissionType
	amount         int64
	rateBps        int64
}

// awardImmediate creates an AVAILABLE commission and credits the wallet in one
// transaction. The commission unique index makes replays no-ops.
func (s *Service) awardImmediate(ctx context.Context, req awardRequest) error {
	now := time.Now().UTC()
	commission := domain.Commission{
		ID:             s.genID.Generate(),
		ReferrerID:     req.referrerID,
		ReferredID:     req.referredID,
		SourceID:       req.sourceID,
		SourceType:     req.sourceType,
		CommissionType: req.commissionType,
		Amount:         req.amount,
		RateBps:        req.rateBps,
		Status:         domain.CommissionStatusAvailable,
		AvailableAt:    &now,
		ReleasedAt:     &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertCommission(ctx, tx, &commission)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		if _, err := s.walletSvc.ApplyTx(ctx, tx, walletdomain.Movement{
			UserID:        req.referrerID,
			Kind:          walletdomain.MovementCredit,
			Amount:        req.amount,
			ReferenceID:   commission.ID.String(),
			ReferenceType: walletdomain.ReferenceTypeReferral,
			Description:   fmt.Sprintf("%s commission on %s %s", req.commissionType, strings.ToLower(string(req.sourceType)), req.sourceID),
		}); err != nil {
			return err
		}
		return s.repo.UpsertStats(ctx, tx, req.referrerID, req.amount, 0, now)
	})
}

func (s *Service) OnUserGain(ctx context.Context, event domain.GainEvent) error {
	if event.UserID == 0 || event.SourceID == 0 {
		return domain.ErrInvalidUser
	}
	if event.Amount <= 0 {
		return domain.ErrInvalidAmount
	}

	referral, err := s.repo.FindActiveByReferred(ctx, s.db, event.UserID)
	if err != nil {
		return err
	}
	if referral == nil {
		return nil
	}

	amount := event.Amount / 2
	if amount <= 0 {
		return nil
	}

	sourceType := event.SourceType
	if sourceType == "" {
		sourceType = domain.SourceTypeUserGain
	}

	now := time.Now().UTC()
	availableAt := now.Add(s.policy.Current().GainCommissionDelay)
	commission := domain.Commission{
		ID:             s.genID.Generate(),
		ReferrerID:     referral.ReferrerID,
		ReferredID:     event.UserID,
		SourceID:       event.SourceID,
		SourceType:     sourceType,
		CommissionType: domain.CommissionTypeUserEarning,
		Amount:         amount,
		RateBps:        5000,
		Status:         domain.CommissionStatusPending,
		AvailableAt:    &availableAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = s.repo.InsertCommission(ctx, s.db, &commission)
	return err
}

func (s *Service) ReleaseDueCommissions(ctx context.Context, batchSize int) (int, error) {
	now := time.Now().UTC()
	due, err := s.repo.ClaimDueCommissions(ctx, s.db, now, batchSize)
	if err != nil {
		return 0, err
	}

	released := 0
	var errs []error
	for _, commission := range due {
		commission := commission
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Status recheck inside the update keeps concurrent sweeps honest.
			updated, err := s.repo.MarkCommissionAvailable(ctx, tx, commission.ID, now)
			if err != nil {
				return err
			}
			if !updated {
				return nil
			}
			if _, err := s.walletSvc.ApplyTx(ctx, tx, walletdomain.Movement{
				UserID:        commission.ReferrerID,
				Kind:          walletdomain.MovementCredit,
				Amount:        commission.Amount,
				ReferenceID:   commission.ID.String(),
				ReferenceType: walletdomain.ReferenceTypeReferral,
				Description:   "matured referral commission",
			}); err != nil {
				return err
			}
			if err := s.repo.UpsertStats(ctx, tx, commission.ReferrerID, commission.Amount, 0, now); err != nil {
				return err
			}
			released++
			return nil
		})
		if err != nil {
			s.log.Warn("commission release failed",
				zap.String("commission_id", commission.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("commission %s: %w", commission.ID, err))
		}
	}
	return released, errors.Join(errs...)
}

func (s *Service) ListCommissions(ctx context.Context, referrerID snowflake.ID, limit int) ([]domain.Commission, error) {
	if referrerID == 0 {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.ListCommissionsByReferrer(ctx, s.db, referrerID, limit)
}

func (s *Service) GetStats(ctx context.Context, userID snowflake.ID) (domain.Stats, error) {
	if userID == 0 {
		return domain.Stats{}, domain.ErrInvalidUser
	}
	stats, err := s.repo.FindStats(ctx, s.db, userID)
	if err != nil {
		return domain.Stats{}, err
	}
	if stats == nil {
		return domain.Stats{UserID: userID}, nil
	}
	return *stats, nil
}

func roleAllowed(allowed []string, role string) bool {
	for _, r := range allowed {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
