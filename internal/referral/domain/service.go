package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CompletedOrder carries the order facts the commission engine needs, so the
// engine never reads order state itself.
type CompletedOrder struct {
	OrderID   snowflake.ID
	SellerID  snowflake.ID
	NetAmount int64
}

// GainEvent reports an amount a referred user earned outside the order flow
// (delivery fees, bonuses).
type GainEvent struct {
	UserID     snowflake.ID
	Amount     int64
	SourceID   snowflake.ID
	SourceType SourceType
}

type Repository interface {
	FindActiveByReferred(ctx context.Context, db *gorm.DB, referredID snowflake.ID) (*Referral, error)
	InsertReferral(ctx context.Context, db *gorm.DB, referral *Referral) (bool, error)
	InsertCommission(ctx context.Context, db *gorm.DB, commission *Commission) (bool, error)
	ClaimDueCommissions(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Commission, error)
	MarkCommissionAvailable(ctx context.Context, db *gorm.DB, id snowflake.ID, releasedAt time.Time) (bool, error)
	ListCommissionsByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, limit int) ([]Commission, error)
	UpsertStats(ctx context.Context, db *gorm.DB, userID snowflake.ID, earnedDelta, referredDelta int64, now time.Time) error
	FindStats(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Stats, error)
}

type Service interface {
	// ApplyReferralCode attaches a referrer to a recently signed-up user.
	ApplyReferralCode(ctx context.Context, userID snowflake.ID, code string) (Referral, error)
	// OnOrderCompleted awards the two-level seller-sale commission cascade.
	// Safe to replay for the same order.
	OnOrderCompleted(ctx context.Context, completed CompletedOrder) error
	// OnUserGain awards a delayed single-level commission on a referred user's
	// earning.
	OnUserGain(ctx context.Context, event GainEvent) error
	// ReleaseDueCommissions moves matured PENDING commissions to AVAILABLE and
	// credits the referrer's wallet. Returns how many were released.
	ReleaseDueCommissions(ctx context.Context, batchSize int) (int, error)
	ListCommissions(ctx context.Context, referrerID snowflake.ID, limit int) ([]Commission, error)
	GetStats(ctx context.Context, userID snowflake.ID) (Stats, error)
}

var (
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrCodeNotFound    = errors.New("referral_code_not_found")
	ErrSelfReferral    = errors.New("self_referral")
	ErrAlreadyReferred = errors.New("already_referred")
	ErrWindowExpired   = errors.New("signup_window_expired")
	ErrRoleNotAllowed  = errors.New("role_not_allowed")
)
