package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ReferralStatus string

const (
	ReferralStatusActive  ReferralStatus = "ACTIVE"
	ReferralStatusBlocked ReferralStatus = "BLOCKED"
)

type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "PENDING"
	CommissionStatusAvailable CommissionStatus = "AVAILABLE"
	CommissionStatusPaid      CommissionStatus = "PAID"
	CommissionStatusCancelled CommissionStatus = "CANCELLED"
)

type CommissionType string

const (
	CommissionTypeSellerSale       CommissionType = "SELLER_SALE"
	CommissionTypeSellerSaleLevel2 CommissionType = "SELLER_SALE_LEVEL2"
	CommissionTypeUserEarning      CommissionType = "USER_EARNING"
)

type SourceType string

const (
	SourceTypeOrder    SourceType = "ORDER"
	SourceTypeDelivery SourceType = "DELIVERY"
	SourceTypeUserGain SourceType = "USER_GAIN"
)

// Referral links a referred user to their single parent referrer.
type Referral struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	ReferrerID snowflake.ID   `json:"referrer_id" gorm:"not null;index;uniqueIndex:ux_referrals_pair,priority:1"`
	ReferredID snowflake.ID   `json:"referred_id" gorm:"not null;uniqueIndex:ux_referrals_referred;uniqueIndex:ux_referrals_pair,priority:2"`
	Role       string         `json:"role" gorm:"type:text;not null"`
	Status     ReferralStatus `json:"status" gorm:"type:text;not null"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Referral) TableName() string { return "referrals" }

// Commission is a single earned amount for a referrer. The
// (referrer_id, source_id, source_type) unique index dedups repeated triggers.
type Commission struct {
	ID             snowflake.ID     `json:"id" gorm:"primaryKey"`
	ReferrerID     snowflake.ID     `json:"referrer_id" gorm:"not null;index;uniqueIndex:ux_commissions_source,priority:1"`
	ReferredID     snowflake.ID     `json:"referred_id" gorm:"not null"`
	SourceID       snowflake.ID     `json:"source_id" gorm:"not null;uniqueIndex:ux_commissions_source,priority:2"`
	SourceType     SourceType       `json:"source_type" gorm:"type:text;not null;uniqueIndex:ux_commissions_source,priority:3"`
	CommissionType CommissionType   `json:"commission_type" gorm:"type:text;not null"`
	Amount         int64            `json:"amount" gorm:"not null"`
	RateBps        int64            `json:"rate_bps" gorm:"not null"`
	Status         CommissionStatus `json:"status" gorm:"type:text;not null;index"`
	AvailableAt    *time.Time       `json:"available_at,omitempty" gorm:"index"`
	ReleasedAt     *time.Time       `json:"released_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Commission) TableName() string { return "referral_commissions" }

// Stats keeps per-referrer running totals, updated alongside the event that
// changes them.
type Stats struct {
	UserID        snowflake.ID `json:"user_id" gorm:"primaryKey"`
	TotalEarned   int64        `json:"total_earned" gorm:"not null;default:0"`
	TotalReferred int64        `json:"total_referred" gorm:"not null;default:0"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Stats) TableName() string { return "referral_stats" }
