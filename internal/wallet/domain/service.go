package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Movement describes one idempotent wallet mutation. Amount is always positive;
// Kind decides which buckets it touches and in which direction.
type Movement struct {
	UserID        snowflake.ID
	Kind          MovementKind
	Amount        int64
	ReferenceID   string
	ReferenceType string
	Description   string
}

type ListTransactionsRequest struct {
	UserID snowflake.ID
	Limit  int
}

type Service interface {
	// GetOrCreateAccount returns the user's wallet account, creating an empty
	// one on first touch.
	GetOrCreateAccount(ctx context.Context, userID snowflake.ID) (Account, error)
	// GetBalance returns the account without creating it.
	GetBalance(ctx context.Context, userID snowflake.ID) (Account, error)
	// Apply performs a movement in its own transaction.
	Apply(ctx context.Context, movement Movement) (Account, error)
	// ApplyTx performs a movement inside the caller's transaction so escrow
	// state and funds move atomically. Replaying the same reference is a no-op
	// that returns the current account.
	ApplyTx(ctx context.Context, tx *gorm.DB, movement Movement) (Account, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidReference    = errors.New("invalid_reference")
	ErrInvalidMovement     = errors.New("invalid_movement")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInsufficientLocked  = errors.New("insufficient_locked")
)
