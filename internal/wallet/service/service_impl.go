package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("wallet.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) GetOrCreateAccount(ctx context.Context, userID snowflake.ID) (domain.Account, error) {
	if userID == 0 {
		return domain.Account{}, domain.ErrInvalidUser
	}

	var account domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.getOrCreateAccountTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		account = *found
		return nil
	})
	return account, err
}

func (s *Service) GetBalance(ctx context.Context, userID snowflake.ID) (domain.Account, error) {
	if userID == 0 {
		return domain.Account{}, domain.ErrInvalidUser
	}
	account, err := s.repo.FindAccountByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return *account, nil
}

func (s *Service) Apply(ctx context.Context, movement domain.Movement) (domain.Account, error) {
	var account domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.ApplyTx(ctx, tx, movement)
		if err != nil {
			return err
		}
		account = applied
		return nil
	})
	return account, err
}

func (s *Service) ApplyTx(ctx context.Context, tx *gorm.DB, movement domain.Movement) (domain.Account, error) {
	if movement.UserID == 0 {
		return domain.Account{}, domain.ErrInvalidUser
	}
	if movement.Amount <= 0 {
		return domain.Account{}, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(movement.ReferenceID) == "" || strings.TrimSpace(movement.ReferenceType) == "" {
		return domain.Account{}, domain.ErrInvalidReference
	}

	account, err := s.getOrCreateAccountTx(ctx, tx, movement.UserID)
	if err != nil {
		return domain.Account{}, err
	}

	// A replayed reference returns the current balances without moving funds.
	existing, err := s.repo.FindTransaction(ctx, tx, account.ID, movement.ReferenceID, movement.ReferenceType)
	if err != nil {
		return domain.Account{}, err
	}
	if existing != nil {
		return *account, nil
	}

	availableAfter, lockedAfter, err := applyMovement(account.Available, account.Locked, movement.Kind, movement.Amount)
	if err != nil {
		return domain.Account{}, err
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:              s.genID.Generate(),
		AccountID:       account.ID,
		Kind:            movement.Kind,
		Amount:          movement.Amount,
		AvailableBefore: account.Available,
		AvailableAfter:  availableAfter,
		LockedBefore:    account.Locked,
		LockedAfter:     lockedAfter,
		ReferenceID:     movement.ReferenceID,
		ReferenceType:   movement.ReferenceType,
		Description:     movement.Description,
		CreatedAt:       now,
	}
	inserted, err := s.repo.InsertTransaction(ctx, tx, txn)
	if err != nil {
		return domain.Account{}, err
	}
	if !inserted {
		// Lost the race to a concurrent replay; the row lock makes this rare.
		return *account, nil
	}

	account.Available = availableAfter
	account.Locked = lockedAfter
	account.UpdatedAt = now
	if err := s.repo.UpdateBalances(ctx, tx, account); err != nil {
		return domain.Account{}, err
	}

	return *account, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) ([]domain.Transaction, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	account, err := s.repo.FindAccountByUserID(ctx, s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return s.repo.ListTransactions(ctx, s.db, account.ID, req.Limit)
}

func (s *Service) getOrCreateAccountTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*domain.Account, error) {
	account, err := s.repo.FindAccountByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	now := time.Now().UTC()
	fresh := &domain.Account{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Currency:  "XOF",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.repo.InsertAccount(ctx, tx, fresh); err != nil {
		return nil, err
	}
	// Re-read under lock in case a concurrent insert won the conflict.
	account, err = s.repo.FindAccountByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

func applyMovement(available, locked int64, kind domain.MovementKind, amount int64) (int64, int64, error) {
	switch kind {
	case domain.MovementCredit:
		return available + amount, locked, nil
	case domain.MovementDebit:
		if available < amount {
			return 0, 0, domain.ErrInsufficientBalance
		}
		return available - amount, locked, nil
	case domain.MovementCreditLocked:
		return available, locked + amount, nil
	case domain.MovementDebitLocked:
		if locked < amount {
			return 0, 0, domain.ErrInsufficientLocked
		}
		return available, locked - amount, nil
	case domain.MovementRelease:
		if locked < amount {
			return 0, 0, domain.ErrInsufficientLocked
		}
		return available + amount, locked - amount, nil
	case domain.MovementHold:
		if available < amount {
			return 0, 0, domain.ErrInsufficientBalance
		}
		return available - amount, locked + amount, nil
	default:
		return 0, 0, domain.ErrInvalidMovement
	}
}
