package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/kolopay/kolopay/internal/catalog/domain"
	catalogrepo "github.com/kolopay/kolopay/internal/catalog/repository"
	"github.com/kolopay/kolopay/internal/config"
	orderdomain "github.com/kolopay/kolopay/internal/order/domain"
	orderrepo "github.com/kolopay/kolopay/internal/order/repository"
	orderservice "github.com/kolopay/kolopay/internal/order/service"
	userdomain "github.com/kolopay/kolopay/internal/user/domain"
	userrepo "github.com/kolopay/kolopay/internal/user/repository"
	walletdomain "github.com/kolopay/kolopay/internal/wallet/domain"
	walletrepo "github.com/kolopay/kolopay/internal/wallet/repository"
	walletservice "github.com/kolopay/kolopay/internal/wallet/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_order_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&catalogdomain.Product{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&walletdomain.Account{},
		&walletdomain.Transaction{},
	))
	return db
}

type testEnv struct {
	db     *gorm.DB
	node   *snowflake.Node
	svc    orderdomain.Service
	wallet walletdomain.Service
	policy *config.PolicyHolder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	walletSvc := walletservice.NewService(walletservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  walletrepo.Provide(),
	})

	policy := &config.PolicyHolder{}
	policy.Replace(config.DefaultPolicy())

	svc := orderservice.NewService(orderservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Policy:      policy,
		Repo:        orderrepo.Provide(),
		WalletSvc:   walletSvc,
		CatalogRepo: catalogrepo.Provide(),
		UserRepo:    userrepo.Provide(),
	})
	return &testEnv{db: db, node: node, svc: svc, wallet: walletSvc, policy: policy}
}

func (e *testEnv) seedUser(t *testing.T, role userdomain.Role) snowflake.ID {
	t.Helper()

	id := e.node.Generate()
	user := userdomain.User{
		ID:           id,
		Name:         "user " + id.String(),
		Phone:        "+22507" + id.String(),
		Role:         role,
		ReferralCode: "RC" + id.String(),
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.db.Create(&user).Error)
	return id
}

func (e *testEnv) seedProduct(t *testing.T, sellerID snowflake.ID, price int64, active bool) snowflake.ID {
	t.Helper()

	product := catalogdomain.Product{
		ID:        e.node.Generate(),
		SellerID:  sellerID,
		Title:     "widget",
		Price:     price,
		Stock:     10,
		Active:    active,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.db.Create(&product).Error)
	return product.ID
}

// paidOrder creates an order and funds its escrow, returning the order in PAID
// state with the seller's locked balance credited.
func (e *testEnv) paidOrder(t *testing.T, buyerID, sellerID, productID snowflake.ID) orderdomain.Order {
	t.Helper()
	ctx := context.Background()

	order, err := e.svc.Create(ctx, orderdomain.CreateOrderRequest{
		BuyerID:  buyerID,
		SellerID: sellerID,
		Items:    []orderdomain.CreateOrderItem{{ProductID: productID, Quantity: 2}},
	})
	require.NoError(t, err)

	payinID := e.node.Generate()
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err = e.svc.LockEscrowTx(ctx, tx, order.ID, payinID)
		return err
	})
	require.NoError(t, err)
	return order
}

func TestCreateSnapshotsProductLines(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sellerID := env.seedUser(t, userdomain.RoleSeller)
	buyerID := env.seedUser(t, userdomain.RoleBuyer)
	productID := env.seedProduct(t, sellerID, 5000, true)

	order, err := env.svc.Create(ctx, orderdomain.CreateOrderRequest{
		BuyerID:     buyerID,
		SellerID:    sellerID,
		Items:       []orderdomain.CreateOrderItem{{ProductID: productID, Quantity: 2}},
		ShippingFee: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCreated, order.Status)
	assert.Equal(t, int64(10500), order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "widget", order.Items[0].Name)
	assert.Equal(t, int64(5000), order.Items[0].UnitPrice)

	// Repricing the product after the fact must not touch the snapshot.
	require.NoError(t, env.db.Model(&catalogdomain.Product{}).
		Where("id = ?", productID).Update("price", 9999).Error)

	got, err := env.svc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10500), got.TotalAmount)
	assert.Equal(t, int64(5000), got.Items[0].UnitPrice)
}

func TestCreateValidations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sellerID := env.seedUser(t, userdomain.RoleSeller)
	otherSeller := env.seedUser(t, userdomain.RoleSeller)
	buyerID := env.seedUser(t, userdomain.RoleBuyer)
	productID := env.seedProduct(t, sellerID, 5000, true)
	inactiveID := env.seedProduct(t, sellerID, 5000, false)

	_, err := env.svc.Create(ctx, orderdomain.CreateOrderRequest{
		BuyerID: buyerID, SellerID: sellerID,
	})
	assert.ErrorIs(t, err, orderdomain.ErrEmptyCart)

	_, err = env.svc.Create(ctx, orderdomain.CreateOrderRequest{
		BuyerID: buyerID, SellerID: sellerID,
		Items: []orderdomain.CreateOrderItem{{ProductID: productID, Quantity: 0}},
	})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidQuantity)

	_, err = env.svc.Create(ctx, orderdomain.CreateOrderRequest{
		BuyerID: buyerID, SellerID: sellerID,
		Items: []orderdomain.CreateOrderItem{{ProductID: inactiveID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, orderdomain.ErrProductInactive)

	_, err = env.svc.Create(ctx, orderdomain.CreateOrderRequest{
		BuyerID: buyerID, SellerID: otherSeller,
		Items: []orderdomain.CreateOrderItem{{ProductID: productID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, orderdomain.ErrSellerMismatch)

	_, err = env.svc.Create(ctx, orderdomain.CreateOrderRequest{
		BuyerID: buyerID, SellerID: buyerID,
		Items: []orderdomain.CreateOrderItem{{ProductID: productID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, orderdomain.ErrSellerNotFound)
}

func TestLockEscrowNetAmountAndReplay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sellerID := env.seedUser(t, userdomain.RoleSeller)
	buyerID := env.seedUser(t, userdomain.RoleBuyer)
	productID := env.seedProduct(t, sellerID, 5000, true)

	order := env.paidOrder(t, buyerID, sellerID, productID)
	assert.Equal(t, orderdomain.StatusPaid, order.Status)
	assert.Equal(t, int64(10000), order.TotalAmount)
	assert.Equal(t, int64(9600), order.NetAmount)
	assert.True(t, order.EscrowLocked)

	account, err := env.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Available)
	assert.Equal(t, int64(9600), account.Locked)

	// A second lock, e.g. a redelivered verification, must not double-fund.
	err = env.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := env.svc.LockEscrowTx(ctx, tx, order.ID, *order.PayinTransactionID)
		return err
	})
	require.NoError(t, err)

	account, err = env.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(9600), account.Locked)
}

func TestConfirmByClientReleasesEscrow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sellerID := env.seedUser(t, userdomain.RoleSeller)
	buyerID := env.seedUser(t, userdomain.RoleBuyer)
	productID := env.seedProduct(t, sellerID, 5000, true)
	order := env.paidOrder(t, buyerID, sellerID, productID)

	_, err := env.svc.MarkAssigned(ctx, order.ID)
	require.NoError(t, err)
	_, err = env.svc.MarkShipped(ctx, order.ID)
	require.NoError(t, err)
	_, err = env.svc.MarkDelivered(ctx, order.ID)
	require.NoError(t, err)

	_, err = env.svc.ConfirmByClient(ctx, order.ID, sellerID)
	assert.ErrorIs(t, err, orderdomain.ErrNotOwner)

	confirmed, err := env.svc.ConfirmByClient(ctx, order.ID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, confirmed.Status)
	assert.False(t, confirmed.EscrowLocked)
	assert.True(t, confirmed.ConfirmedByClient)

	account, err := env.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(9600), account.Available)
	assert.Equal(t, int64(0), account.Locked)

	// Confirming again is an idempotent success, no second release.
	again, err := env.svc.ConfirmByClient(ctx, order.ID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, again.Status)

	account, err = env.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(9600), account.Available)
}

func TestConfirmBeforeDeliveryFollowsPolicy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sellerID := env.seedUser(t, userdomain.RoleSeller)
	buyerID := env.seedUser(t, userdomain.RoleBuyer)
	productID := env.seedProduct(t, sellerID, 5000, true)
	order := env.paidOrder(t, buyerID, sellerID, productID)

	strict := config.DefaultPolicy()
	strict.RequireDeliveryBeforeConfirm = true
	env.policy.Replace(strict)

	_, err := env.svc.ConfirmByClient(ctx, order.ID, buyerID)
	assert.ErrorIs(t, err, orderdomain.ErrPaymentNotEligible)

	env.policy.Replace(config.DefaultPolicy())

	confirmed, err := env.svc.ConfirmByClient(ctx, order.ID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, confirmed.Status)
}

func TestTransitionRejectsSkips(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sellerID := env.seedUser(t, userdomain.RoleSeller)
	buyerID := env.seedUser(t, userdomain.RoleBuyer)
	productID := env.seedProduct(t, sellerID, 5000, true)
	order := env.paidOrder(t, buyerID, sellerID, productID)

	_, err := env.svc.MarkShipped(ctx, order.ID)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidTransition)

	assigned, err := env.svc.MarkAssigned(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusAssigned, assigned.Status)

	// Repeating the same transition is a no-op success.
	again, err := env.svc.MarkAssigned(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusAssigned, again.Status)
}

func TestCancelReversesEscrow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sellerID := env.seedUser(t, userdomain.RoleSeller)
	buyerID := env.seedUser(t, userdomain.RoleBuyer)
	productID := env.seedProduct(t, sellerID, 5000, true)
	order := env.paidOrder(t, buyerID, sellerID, productID)

	cancelled, err := env.svc.Cancel(ctx, order.ID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCancelled, cancelled.Status)
	assert.False(t, cancelled.EscrowLocked)
	assert.Equal(t, "out of stock", cancelled.CancelReason)

	account, err := env.wallet.GetBalance(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Available)
	assert.Equal(t, int64(0), account.Locked)

	// Cancelling twice stays CANCELLED without a second reversal.
	again, err := env.svc.Cancel(ctx, order.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, "out of stock", again.CancelReason)
}

func TestCancelCompletedOrderFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sellerID := env.seedUser(t, userdomain.RoleSeller)
	buyerID := env.seedUser(t, userdomain.RoleBuyer)
	productID := env.seedProduct(t, sellerID, 5000, true)
	order := env.paidOrder(t, buyerID, sellerID, productID)

	_, err := env.svc.ConfirmByClient(ctx, order.ID, buyerID)
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, order.ID, "too late")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidTransition)
}
