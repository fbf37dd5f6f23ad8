package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/order/domain"
	pkgdb "github.com/kolopay/kolopay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const orderColumns = `id, buyer_id, seller_id, total_amount, shipping_fee, net_amount,
	status, escrow_locked, escrow_locked_at, escrow_released_at,
	confirmed_by_client, confirmed_at, payin_transaction_id,
	delivery_address, cancel_reason, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.find(ctx, db, id, "")
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.find(ctx, db, id, pkgdb.ForUpdate(db))
}

func (r *repo) find(ctx context.Context, db *gorm.DB, id snowflake.ID, lock string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE id = ? LIMIT 1`+lock,
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

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, buyer_id, seller_id, total_amount, shipping_fee, net_amount,
			status, escrow_locked, escrow_locked_at, escrow_released_at,
			confirmed_by_client, confirmed_at, payin_transaction_id,
			delivery_address, cancel_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.BuyerID,
		order.SellerID,
		order.TotalAmount,
		order.ShippingFee,
		order.NetAmount,
		string(order.Status),
		order.EscrowLocked,
		order.EscrowLockedAt,
		order.EscrowReleasedAt,
		order.ConfirmedByClient,
		order.ConfirmedAt,
		order.PayinTransactionID,
		order.DeliveryAddress,
		order.CancelReason,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	for i := range items {
		item := &items[i]
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO order_items (
				id, order_id, product_id, name, image, unit_price, quantity, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Name,
			item.Image,
			item.UnitPrice,
			item.Quantity,
			item.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, net_amount = ?, escrow_locked = ?, escrow_locked_at = ?,
			escrow_released_at = ?, confirmed_by_client = ?, confirmed_at = ?,
			payin_transaction_id = ?, cancel_reason = ?, updated_at = ?
		 WHERE id = ?`,
		string(order.Status),
		order.NetAmount,
		order.EscrowLocked,
		order.EscrowLockedAt,
		order.EscrowReleasedAt,
		order.ConfirmedByClient,
		order.ConfirmedAt,
		order.PayinTransactionID,
		order.CancelReason,
		order.UpdatedAt,
		order.ID,
	).Error
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, product_id, name, image, unit_price, quantity, created_at
		 FROM order_items
		 WHERE order_id = ?
		 ORDER BY id`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByBuyer(ctx context.Context, db *gorm.DB, buyerID snowflake.ID, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE buyer_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		buyerID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
