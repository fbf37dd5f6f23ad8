package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MovementKind identifies how a movement touches the available and locked buckets.
type MovementKind string

const (
	// MovementCredit adds to the available bucket.
	MovementCredit MovementKind = "credit"
	// MovementDebit removes from the available bucket.
	MovementDebit MovementKind = "debit"
	// MovementCreditLocked adds to the locked bucket.
	MovementCreditLocked MovementKind = "credit_locked"
	// MovementDebitLocked removes from the locked bucket.
	MovementDebitLocked MovementKind = "debit_locked"
	// MovementRelease moves funds from locked to available.
	MovementRelease MovementKind = "release"
	// MovementHold moves funds from available to locked.
	MovementHold MovementKind = "hold"
)

// ReferenceType values used across the platform for idempotent movements.
const (
	ReferenceTypeOrder    = "ORDER"
	ReferenceTypePayin    = "PAYIN"
	ReferenceTypePayout   = "PAYOUT"
	ReferenceTypeReferral = "REFERRAL"
	ReferenceTypeEarning  = "EARNING"
	ReferenceTypeManual   = "MANUAL"
)

// Account holds one user's funds split into available and locked buckets.
// Amounts are XOF minor units.
type Account struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_wallet_accounts_user"`
	Available int64        `json:"available" gorm:"not null;default:0"`
	Locked    int64        `json:"locked" gorm:"not null;default:0"`
	Currency  string       `json:"currency" gorm:"type:text;not null;default:XOF"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "wallet_accounts" }

// Transaction is the immutable record of a single wallet movement. The
// (account_id, reference_id, reference_type) unique index makes replays no-ops.
type Transaction struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID       snowflake.ID `json:"account_id" gorm:"not null;index;uniqueIndex:ux_wallet_txns_reference,priority:1"`
	Kind            MovementKind `json:"kind" gorm:"type:text;not null"`
	Amount          int64        `json:"amount" gorm:"not null"`
	AvailableBefore int64        `json:"available_before" gorm:"not null"`
	AvailableAfter  int64        `json:"available_after" gorm:"not null"`
	LockedBefore    int64        `json:"locked_before" gorm:"not null"`
	LockedAfter     int64        `json:"locked_after" gorm:"not null"`
	ReferenceID     string       `json:"reference_id" gorm:"type:text;not null;uniqueIndex:ux_wallet_txns_reference,priority:2"`
	ReferenceType   string       `json:"reference_type" gorm:"type:text;not null;uniqueIndex:ux_wallet_txns_reference,priority:3"`
	Description     string       `json:"description" gorm:"type:text"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "wallet_transactions" }
