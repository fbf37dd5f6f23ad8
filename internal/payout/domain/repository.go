package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindPendingBySeller(ctx context.Context, db *gorm.DB, sellerID snowflake.ID) (*Transaction, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Transaction, error)
	FindByReferenceForUpdate(ctx context.Context, db *gorm.DB, reference string) (*Transaction, error)
	// Insert claims the seller's single PENDING slot; false means another
	// withdrawal already holds it.
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	Update(ctx context.Context, db *gorm.DB, txn *Transaction) error
	ListStuckPending(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]Transaction, error)
	ListBySeller(ctx context.Context, db *gorm.DB, sellerID snowflake.ID, limit int) ([]Transaction, error)
}
