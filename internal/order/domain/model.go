package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the escrow state machine position of an order.
type Status string

const (
	StatusCreated        Status = "CREATED"
	StatusPaymentPending Status = "PAYMENT_PENDING"
	StatusPaid           Status = "PAID"
	StatusAssigned       Status = "ASSIGNED"
	StatusShipped        Status = "SHIPPED"
	StatusDelivered      Status = "DELIVERED"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// EscrowHolds reports whether the status sits inside the escrow window, i.e.
// seller funds are locked and not yet released or reversed.
func (s Status) EscrowHolds() bool {
	switch s {
	case StatusPaid, StatusAssigned, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// Order is the buyer/seller escrow agreement. Amounts are XOF minor units;
// NetAmount is what the seller receives after the platform fee.
type Order struct {
	ID                 snowflake.ID  `json:"id" gorm:"primaryKey"`
	BuyerID            snowflake.ID  `json:"buyer_id" gorm:"not null;index"`
	SellerID           snowflake.ID  `json:"seller_id" gorm:"not null;index"`
	TotalAmount        int64         `json:"total_amount" gorm:"not null"`
	ShippingFee        int64         `json:"shipping_fee" gorm:"not null;default:0"`
	NetAmount          int64         `json:"net_amount" gorm:"not null;default:0"`
	Status             Status        `json:"status" gorm:"type:text;not null;index"`
	EscrowLocked       bool          `json:"escrow_locked" gorm:"not null;default:false"`
	EscrowLockedAt     *time.Time    `json:"escrow_locked_at,omitempty"`
	EscrowReleasedAt   *time.Time    `json:"escrow_released_at,omitempty"`
	ConfirmedByClient  bool          `json:"confirmed_by_client" gorm:"not null;default:false"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	PayinTransactionID *snowflake.ID `json:"payin_transaction_id,omitempty" gorm:"index"`
	DeliveryAddress    string        `json:"delivery_address" gorm:"type:text"`
	CancelReason       string        `json:"cancel_reason" gorm:"type:text"`
	CreatedAt          time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Items []OrderItem `json:"items,omitempty" gorm:"-"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// OrderItem is a point-of-sale snapshot of a product line. Later catalog edits
// never change what the buyer agreed to pay.
type OrderItem struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID   snowflake.ID `json:"order_id" gorm:"not null;index"`
	ProductID snowflake.ID `json:"product_id" gorm:"not null"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Image     string       `json:"image" gorm:"type:text"`
	UnitPrice int64        `json:"unit_price" gorm:"not null"`
	Quantity  int          `json:"quantity" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrderItem) TableName() string { return "order_items" }
