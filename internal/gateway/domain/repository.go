package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PayinTransaction, error)
	FindByProviderTxID(ctx context.Context, db *gorm.DB, providerTxID string) (*PayinTransaction, error)
	FindByProviderTxIDForUpdate(ctx context.Context, db *gorm.DB, providerTxID string) (*PayinTransaction, error)
	Insert(ctx context.Context, db *gorm.DB, txn *PayinTransaction) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status PayinStatus, fees int64, raw []byte, updatedAt time.Time) error
	// MarkSellerCredited stamps the escrowed net amount alongside the flag so
	// the stored row carries the seller's share.
	MarkSellerCredited(ctx context.Context, db *gorm.DB, id snowflake.ID, netAmount int64, updatedAt time.Time) error
	ListPendingSince(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]PayinTransaction, error)
}
