package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userColumns = `id, name, phone, email, role, referral_code, referred_by, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var item domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`,
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

func (r *repo) FindByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.User, error) {
	var item domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE phone = ? LIMIT 1`,
		phone,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByReferralCode(ctx context.Context, db *gorm.DB, code string) (*domain.User, error) {
	var item domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE referral_code = ? LIMIT 1`,
		code,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO users (
			id, name, phone, email, role, referral_code, referred_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone) DO NOTHING`,
		user.ID,
		user.Name,
		user.Phone,
		user.Email,
		string(user.Role),
		user.ReferralCode,
		user.ReferredBy,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetReferredBy(ctx context.Context, db *gorm.DB, id, referrerID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET referred_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND referred_by IS NULL`,
		referrerID,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
