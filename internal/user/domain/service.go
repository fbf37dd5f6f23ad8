package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Name  string
	Phone string
	Email string
	Role  Role
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByPhone(ctx context.Context, db *gorm.DB, phone string) (*User, error)
	FindByReferralCode(ctx context.Context, db *gorm.DB, code string) (*User, error)
	Insert(ctx context.Context, db *gorm.DB, user *User) (bool, error)
	SetReferredBy(ctx context.Context, db *gorm.DB, id, referrerID snowflake.ID) (bool, error)
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (User, error)
	GetByID(ctx context.Context, id snowflake.ID) (User, error)
	GetByReferralCode(ctx context.Context, code string) (User, error)
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidPhone         = errors.New("invalid_phone")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrInvalidID            = errors.New("invalid_id")
	ErrPhoneTaken           = errors.New("phone_taken")
	ErrNotFound             = errors.New("not_found")
	ErrReferralCodeNotFound = errors.New("referral_code_not_found")
)
