package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateOrderItem struct {
	ProductID snowflake.ID
	Quantity  int
}

type CreateOrderRequest struct {
	BuyerID         snowflake.ID
	SellerID        snowflake.ID
	Items           []CreateOrderItem
	ShippingFee     int64
	DeliveryAddress string
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	Update(ctx context.Context, db *gorm.DB, order *Order) error
	ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)
	ListByBuyer(ctx context.Context, db *gorm.DB, buyerID snowflake.ID, limit int) ([]Order, error)
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (Order, error)
	GetByID(ctx context.Context, id snowflake.ID) (Order, error)
	ListByBuyer(ctx context.Context, buyerID snowflake.ID, limit int) ([]Order, error)

	// AttachPayinTx links an initiated pay-in to the order and moves it to
	// PAYMENT_PENDING. Runs inside the caller's transaction.
	AttachPayinTx(ctx context.Context, tx *gorm.DB, orderID, payinID snowflake.ID) (Order, error)
	// LockEscrowTx funds escrow after a verified pay-in: computes the net
	// amount, credits the seller's locked bucket and marks the order PAID.
	// Replays on an already locked order are no-ops. Runs inside the caller's
	// transaction.
	LockEscrowTx(ctx context.Context, tx *gorm.DB, orderID, payinID snowflake.ID) (Order, error)

	// ConfirmByClient releases escrow to the seller and completes the order.
	// Confirming an order you already confirmed is an idempotent success.
	ConfirmByClient(ctx context.Context, orderID, clientID snowflake.ID) (Order, error)

	MarkAssigned(ctx context.Context, orderID snowflake.ID) (Order, error)
	MarkShipped(ctx context.Context, orderID snowflake.ID) (Order, error)
	MarkDelivered(ctx context.Context, orderID snowflake.ID) (Order, error)

	Cancel(ctx context.Context, orderID snowflake.ID, reason string) (Order, error)
}

var (
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrEmptyCart          = errors.New("empty_cart")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidShipping    = errors.New("invalid_shipping")
	ErrInvalidBuyer       = errors.New("invalid_buyer")
	ErrSellerNotFound     = errors.New("seller_not_found")
	ErrProductNotFound    = errors.New("product_not_found")
	ErrSellerMismatch     = errors.New("seller_mismatch")
	ErrProductInactive    = errors.New("product_inactive")
	ErrNotOwner           = errors.New("not_owner")
	ErrAlreadyConfirmed   = errors.New("already_confirmed")
	ErrPaymentNotEligible = errors.New("payment_not_eligible")
	ErrInvalidTransition  = errors.New("invalid_transition")
)
