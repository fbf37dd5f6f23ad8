package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role classifies marketplace participants.
type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSeller   Role = "seller"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is a known participant role.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleDelivery, RoleAdmin:
		return true
	}
	return false
}

// User is a marketplace participant. ReferralCode is the code this user hands
// out; ReferredBy points at the user whose code they redeemed.
type User struct {
	ID           snowflake.ID  `json:"id" gorm:"primaryKey"`
	Name         string        `json:"name" gorm:"type:text;not null"`
	Phone        string        `json:"phone" gorm:"type:text;not null;uniqueIndex:ux_users_phone"`
	Email        string        `json:"email" gorm:"type:text"`
	Role         Role          `json:"role" gorm:"type:text;not null"`
	ReferralCode string        `json:"referral_code" gorm:"type:text;not null;uniqueIndex:ux_users_referral_code"`
	ReferredBy   *snowflake.ID `json:"referred_by,omitempty" gorm:"index"`
	CreatedAt    time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
