package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const productColumns = `id, seller_id, title, description, image, price, stock, active, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var item domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id = ? LIMIT 1`,
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

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id IN ?`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListBySeller(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+`
		 FROM products
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

func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (
			id, seller_id, title, description, image, price, stock, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.SellerID,
		product.Title,
		product.Description,
		product.Image,
		product.Price,
		product.Stock,
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}
