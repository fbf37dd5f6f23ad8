package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product is a seller listing. Price is XOF minor units.
type Product struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	SellerID    snowflake.ID `json:"seller_id" gorm:"not null;index"`
	Title       string       `json:"title" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text"`
	Image       string       `json:"image" gorm:"type:text"`
	Price       int64        `json:"price" gorm:"not null"`
	Stock       int          `json:"stock" gorm:"not null;default:0"`
	Active      bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }
