package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/kolopay/kolopay/internal/gateway/domain"
)

type Status = gatewaydomain.PayinStatus

const (
	StatusPending  = gatewaydomain.StatusPending
	StatusSuccess  = gatewaydomain.StatusSuccess
	StatusFailed   = gatewaydomain.StatusFailed
	StatusCanceled = gatewaydomain.StatusCanceled
)

// Transaction is one withdrawal attempt. Reference is the ULID we hand the
// provider and the key every webhook comes back with. The partial unique
// index on seller_id enforces at most one PENDING row per seller at the
// database, so concurrent withdrawals cannot both claim the slot.
type Transaction struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	SellerID        snowflake.ID `json:"seller_id" gorm:"not null;index;uniqueIndex:ux_payouts_pending_seller,where:status = 'PENDING'"`
	Provider        string       `json:"provider" gorm:"type:text;not null"`
	Amount          int64        `json:"amount" gorm:"not null"`
	SentAmount      int64        `json:"sent_amount" gorm:"not null;default:0"`
	Fees            int64        `json:"fees" gorm:"not null;default:0"`
	Reference       string       `json:"reference" gorm:"type:text;not null;uniqueIndex:ux_payouts_reference"`
	ProviderTxID    string       `json:"provider_tx_id" gorm:"type:text"`
	Status          Status       `json:"status" gorm:"type:text;not null;index"`
	WebhookReceived bool         `json:"webhook_received" gorm:"not null;default:false"`
	FailureReason   string       `json:"failure_reason" gorm:"type:text"`
	PayoutContact   string       `json:"payout_contact" gorm:"type:text"`
	Channel         string       `json:"channel" gorm:"type:text"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "payout_transactions" }
