package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/payout/domain"
	pkgdb "github.com/kolopay/kolopay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const payoutColumns = `id, seller_id, provider, amount, sent_amount, fees, reference,
	provider_tx_id, status, webhook_received, failure_reason, payout_contact, channel,
	created_at, updated_at`

func (r *repo) FindPendingBySeller(ctx context.Context, db *gorm.DB, sellerID snowflake.ID) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+`
		 FROM payout_transactions
		 WHERE seller_id = ? AND status = ?
		 LIMIT 1`,
		sellerID,
		string(domain.StatusPending),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Transaction, error) {
	return r.findByReference(ctx, db, reference, "")
}

func (r *repo) FindByReferenceForUpdate(ctx context.Context, db *gorm.DB, reference string) (*domain.Transaction, error) {
	return r.findByReference(ctx, db, reference, pkgdb.ForUpdate(db))
}

func (r *repo) findByReference(ctx context.Context, db *gorm.DB, reference, lock string) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+` FROM payout_transactions WHERE reference = ? LIMIT 1`+lock,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// Insert claims the seller's withdrawal slot. The partial unique index on
// (seller_id) WHERE status = 'PENDING' makes the claim race-safe: the loser
// of a concurrent insert gets inserted=false instead of a second slot.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payout_transactions (
			id, seller_id, provider, amount, sent_amount, fees, reference,
			provider_tx_id, status, webhook_received, failure_reason, payout_contact, channel,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (seller_id) WHERE status = 'PENDING' DO NOTHING`,
		txn.ID,
		txn.SellerID,
		txn.Provider,
		txn.Amount,
		txn.SentAmount,
		txn.Fees,
		txn.Reference,
		txn.ProviderTxID,
		string(txn.Status),
		txn.WebhookReceived,
		txn.FailureReason,
		txn.PayoutContact,
		txn.Channel,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payout_transactions
		 SET sent_amount = ?, fees = ?, provider_tx_id = ?, status = ?,
		     webhook_received = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ?`,
		txn.SentAmount,
		txn.Fees,
		txn.ProviderTxID,
		string(txn.Status),
		txn.WebhookReceived,
		txn.FailureReason,
		txn.UpdatedAt,
		txn.ID,
	).Error
}

func (r *repo) ListStuckPending(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+`
		 FROM payout_transactions
		 WHERE status = ? AND created_at <= ?
		 ORDER BY created_at, id
		 LIMIT ?`,
		string(domain.StatusPending),
		before,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListBySeller(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+`
		 FROM payout_transactions
		 WHERE seller_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		sellerID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
