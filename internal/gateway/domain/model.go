package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PayinStatus is the canonical transaction status every provider vocabulary
// normalizes to.
type PayinStatus string

const (
	StatusPending  PayinStatus = "PENDING"
	StatusSuccess  PayinStatus = "SUCCESS"
	StatusFailed   PayinStatus = "FAILED"
	StatusCanceled PayinStatus = "CANCELED"
)

// PayinTransaction records one collection attempt against a provider.
// RawResponse is audit-only and never surfaces through the API.
type PayinTransaction struct {
	ID             snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrderID        snowflake.ID   `json:"order_id" gorm:"not null;index"`
	SellerID       snowflake.ID   `json:"seller_id" gorm:"not null;index"`
	ClientID       snowflake.ID   `json:"client_id" gorm:"not null"`
	Provider       string         `json:"provider" gorm:"type:text;not null"`
	ProviderTxID   string         `json:"provider_tx_id" gorm:"type:text;not null;uniqueIndex:ux_payins_provider_tx"`
	Amount         int64          `json:"amount" gorm:"not null"`
	NetAmount      int64          `json:"net_amount" gorm:"not null;default:0"`
	Fees           int64          `json:"fees" gorm:"not null;default:0"`
	Status         PayinStatus    `json:"status" gorm:"type:text;not null;index"`
	SellerCredited bool           `json:"seller_credited" gorm:"not null;default:false"`
	PayerContact   string         `json:"payer_contact" gorm:"type:text"`
	Channel        string         `json:"channel" gorm:"type:text"`
	RawResponse    datatypes.JSON `json:"-" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PayinTransaction) TableName() string { return "payin_transactions" }
