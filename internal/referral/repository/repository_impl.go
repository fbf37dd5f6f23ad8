package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/referral/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const commissionColumns = `id, referrer_id, referred_id, source_id, source_type,
	commission_type, amount, rate_bps, status, available_at, released_at,
	created_at, updated_at`

func (r *repo) FindActiveByReferred(ctx context.Context, db *gorm.DB, referredID snowflake.ID) (*domain.Referral, error) {
	var item domain.Referral
	err := db.WithContext(ctx).Raw(
		`SELECT id, referrer_id, referred_id, role, status, created_at
		 FROM referrals
		 WHERE referred_id = ? AND status = ?
		 LIMIT 1`,
		referredID,
		string(domain.ReferralStatusActive),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertReferral(ctx context.Context, db *gorm.DB, referral *domain.Referral) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO referrals (
			id, referrer_id, referred_id, role, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (referred_id) DO NOTHING`,
		referral.ID,
		referral.ReferrerID,
		referral.ReferredID,
		referral.Role,
		string(referral.Status),
		referral.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertCommission(ctx context.Context, db *gorm.DB, commission *domain.Commission) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO referral_commissions (
			id, referrer_id, referred_id, source_id, source_type,
			commission_type, amount, rate_bps, status, available_at, released_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (referrer_id, source_id, source_type) DO NOTHING`,
		commission.ID,
		commission.ReferrerID,
		commission.ReferredID,
		commission.SourceID,
		string(commission.SourceType),
		string(commission.CommissionType),
		commission.Amount,
		commission.RateBps,
		string(commission.Status),
		commission.AvailableAt,
		commission.ReleasedAt,
		commission.CreatedAt,
		commission.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimDueCommissions picks matured PENDING rows. The read is not locked:
// overlapping sweeps may see the same rows, and MarkCommissionAvailable's
// status recheck lets only one of them release each commission.
func (r *repo) ClaimDueCommissions(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Commission, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []domain.Commission
	err := db.WithContext(ctx).Raw(
		`SELECT `+commissionColumns+`
		 FROM referral_commissions
		 WHERE status = ? AND available_at IS NOT NULL AND available_at <= ?
		 ORDER BY available_at, id
		 LIMIT ?`,
		string(domain.CommissionStatusPending),
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkCommissionAvailable(ctx context.Context, db *gorm.DB, id snowflake.ID, releasedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE referral_commissions
		 SET status = ?, released_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(domain.CommissionStatusAvailable),
		releasedAt,
		releasedAt,
		id,
		string(domain.CommissionStatusPending),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListCommissionsByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, limit int) ([]domain.Commission, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Commission
	err := db.WithContext(ctx).Raw(
		`SELECT `+commissionColumns+`
		 FROM referral_commissions
		 WHERE referrer_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		referrerID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertStats(ctx context.Context, db *gorm.DB, userID snowflake.ID, earnedDelta, referredDelta int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referral_stats (user_id, total_earned, total_referred, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			total_earned = referral_stats.total_earned + ?,
			total_referred = referral_stats.total_referred + ?,
			updated_at = ?`,
		userID,
		earnedDelta,
		referredDelta,
		now,
		earnedDelta,
		referredDelta,
		now,
	).Error
}

func (r *repo) FindStats(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Stats, error) {
	var item domain.Stats
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, total_earned, total_referred, updated_at
		 FROM referral_stats
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.UserID == 0 {
		return nil, nil
	}
	return &item, nil
}
