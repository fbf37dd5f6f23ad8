package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindAccountByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Account, error)
	FindAccountByUserIDForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Account, error)
	InsertAccount(ctx context.Context, db *gorm.DB, account *Account) (bool, error)
	FindTransaction(ctx context.Context, db *gorm.DB, accountID snowflake.ID, referenceID, referenceType string) (*Transaction, error)
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	UpdateBalances(ctx context.Context, db *gorm.DB, account *Account) error
	ListTransactions(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]Transaction, error)
}
