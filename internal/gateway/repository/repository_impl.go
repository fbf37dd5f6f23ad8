package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/gateway/domain"
	pkgdb "github.com/kolopay/kolopay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const payinColumns = `id, order_id, seller_id, client_id, provider, provider_tx_id,
	amount, net_amount, fees, status, seller_credited, payer_contact, channel,
	raw_response, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PayinTransaction, error) {
	var item domain.PayinTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+payinColumns+` FROM payin_transactions WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByProviderTxID(ctx context.Context, db *gorm.DB, providerTxID string) (*domain.PayinTransaction, error) {
	return r.findByProviderTxID(ctx, db, providerTxID, "")
}

func (r *repo) FindByProviderTxIDForUpdate(ctx context.Context, db *gorm.DB, providerTxID string) (*domain.PayinTransaction, error) {
	return r.findByProviderTxID(ctx, db, providerTxID, pkgdb.ForUpdate(db))
}

func (r *repo) findByProviderTxID(ctx context.Context, db *gorm.DB, providerTxID, lock string) (*domain.PayinTransaction, error) {
	var item domain.PayinTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+payinColumns+` FROM payin_transactions WHERE provider_tx_id = ? LIMIT 1`+lock,
		providerTxID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.PayinTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payin_transactions (
			id, order_id, seller_id, client_id, provider, provider_tx_id,
			amount, net_amount, fees, status, seller_credited, payer_contact, channel,
			raw_response, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.OrderID,
		txn.SellerID,
		txn.ClientID,
		txn.Provider,
		txn.ProviderTxID,
		txn.Amount,
		txn.NetAmount,
		txn.Fees,
		string(txn.Status),
		txn.SellerCredited,
		txn.PayerContact,
		txn.Channel,
		txn.RawResponse,
		txn.CreatedAt,
		txn.UpdatedAt,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.PayinStatus, fees int64, raw []byte, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payin_transactions
		 SET status = ?, fees = ?, raw_response = ?, updated_at = ?
		 WHERE id = ?`,
		string(status),
		fees,
		raw,
		updatedAt,
		id,
	).Error
}

func (r *repo) MarkSellerCredited(ctx context.Context, db *gorm.DB, id snowflake.ID, netAmount int64, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payin_transactions
		 SET seller_credited = TRUE, net_amount = ?, updated_at = ?
		 WHERE id = ?`,
		netAmount,
		updatedAt,
		id,
	).Error
}

func (r *repo) ListPendingSince(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]domain.PayinTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.PayinTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+payinColumns+`
		 FROM payin_transactions
		 WHERE status = ? AND created_at >= ?
		 ORDER BY created_at, id
		 LIMIT ?`,
		string(domain.StatusPending),
		since,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
