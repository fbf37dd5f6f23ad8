package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/wallet/domain"
	pkgdb "github.com/kolopay/kolopay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindAccountByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Account, error) {
	return r.findAccount(ctx, db, userID, "")
}

func (r *repo) FindAccountByUserIDForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Account, error) {
	return r.findAccount(ctx, db, userID, pkgdb.ForUpdate(db))
}

func (r *repo) findAccount(ctx context.Context, db *gorm.DB, userID snowflake.ID, lock string) (*domain.Account, error) {
	var item domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, available, locked, currency, created_at, updated_at
		 FROM wallet_accounts
		 WHERE user_id = ?
		 LIMIT 1`+lock,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *domain.Account) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO wallet_accounts (
			id, user_id, available, locked, currency, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		account.ID,
		account.UserID,
		account.Available,
		account.Locked,
		account.Currency,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, accountID snowflake.ID, referenceID, referenceType string) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, kind, amount,
			available_before, available_after, locked_before, locked_after,
			reference_id, reference_type, description, created_at
		 FROM wallet_transactions
		 WHERE account_id = ? AND reference_id = ? AND reference_type = ?
		 LIMIT 1`,
		accountID,
		referenceID,
		referenceType,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO wallet_transactions (
			id, account_id, kind, amount,
			available_before, available_after, locked_before, locked_after,
			reference_id, reference_type, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, reference_id, reference_type) DO NOTHING`,
		txn.ID,
		txn.AccountID,
		string(txn.Kind),
		txn.Amount,
		txn.AvailableBefore,
		txn.AvailableAfter,
		txn.LockedBefore,
		txn.LockedAfter,
		txn.ReferenceID,
		txn.ReferenceType,
		txn.Description,
		txn.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateBalances(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE wallet_accounts
		 SET available = ?, locked = ?, updated_at = ?
		 WHERE id = ?`,
		account.Available,
		account.Locked,
		account.UpdatedAt,
		account.ID,
	).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, kind, amount,
			available_before, available_after, locked_before, locked_after,
			reference_id, reference_type, description, created_at
		 FROM wallet_transactions
		 WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		accountID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
