package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateProductRequest struct {
	SellerID    snowflake.ID
	Title       string
	Description string
	Image       string
	Price       int64
	Stock       int
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Product, error)
	ListBySeller(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, limit int) ([]Product, error)
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
}

type Service interface {
	Create(ctx context.Context, req CreateProductRequest) (Product, error)
	GetByID(ctx context.Context, id snowflake.ID) (Product, error)
	ListBySeller(ctx context.Context, sellerID snowflake.ID, limit int) ([]Product, error)
}

var (
	ErrInvalidSeller = errors.New("invalid_seller")
	ErrInvalidTitle  = errors.New("invalid_title")
	ErrInvalidPrice  = errors.New("invalid_price")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("not_found")
)
