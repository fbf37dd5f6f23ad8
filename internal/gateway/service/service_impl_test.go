package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/kolopay/kolopay/internal/catalog/domain"
	catalogrepo "github.com/kolopay/kolopay/internal/catalog/repository"
	"github.com/kolopay/kolopay/internal/clock"
	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/gateway/adapters"
	gatewaydomain "github.com/kolopay/kolopay/internal/gateway/domain"
	gatewayrepo "github.com/kolopay/kolopay/internal/gateway/repository"
	gatewayservice "github.com/kolopay/kolopay/internal/gateway/service"
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

type fakeAdapter struct {
	initiate      func(gatewaydomain.PayinRequest) (gatewaydomain.PayinResult, error)
	verify        func(string) (gatewaydomain.PayinResult, error)
	initiateCalls int
	verifyCalls   int
}

func (a *fakeAdapter) Provider() string { return "payrail" }

func (a *fakeAdapter) InitiatePayIn(_ context.Context, req gatewaydomain.PayinRequest) (gatewaydomain.PayinResult, error) {
	a.initiateCalls++
	return a.initiate(req)
}

func (a *fakeAdapter) VerifyPayIn(_ context.Context, providerTxID string) (gatewaydomain.PayinResult, error) {
	a.verifyCalls++
	return a.verify(providerTxID)
}

func (a *fakeAdapter) InitiatePayOut(context.Context, gatewaydomain.PayoutRequest) (gatewaydomain.PayoutResult, error) {
	return gatewaydomain.PayoutResult{}, gatewaydomain.ErrProviderRejected
}

func (a *fakeAdapter) VerifyPayOut(context.Context, string) (gatewaydomain.PayoutResult, error) {
	return gatewaydomain.PayoutResult{}, gatewaydomain.ErrProviderRejected
}

func (a *fakeAdapter) ParsePayoutWebhook([]byte) (gatewaydomain.WebhookResult, error) {
	return gatewaydomain.WebhookResult{}, gatewaydomain.ErrInvalidPayload
}

type fakeFactory struct {
	adapter *fakeAdapter
}

func (f *fakeFactory) Provider() string { return "payrail" }

func (f *fakeFactory) NewAdapter(config.ProviderConfig) (gatewaydomain.Adapter, error) {
	return f.adapter, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_gateway_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&catalogdomain.Product{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&walletdomain.Account{},
		&walletdomain.Transaction{},
		&gatewaydomain.PayinTransaction{},
	))
	return db
}

type testEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      gatewaydomain.Service
	orderSvc orderdomain.Service
	wallet   walletdomain.Service
	adapter  *fakeAdapter
	clock    *clock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, config.Config{})
}

func newTestEnvWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	walletSvc := walletservice.NewService(walletservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  walletrepo.Provide(),
	})

	policy := &config.PolicyHolder{}
	policy.Replace(config.DefaultPolicy())

	orderSvc := orderservice.NewService(orderservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Policy:      policy,
		Repo:        orderrepo.Provide(),
		WalletSvc:   walletSvc,
		CatalogRepo: catalogrepo.Provide(),
		UserRepo:    userrepo.Provide(),
	})

	adapter := &fakeAdapter{}
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := gatewayservice.NewService(gatewayservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Cfg:      cfg,
		Policy:   policy,
		Clock:    fake,
		Repo:     gatewayrepo.Provide(),
		OrderSvc: orderSvc,
		Registry: adapters.NewRegistry(&fakeFactory{adapter: adapter}),
	})
	return &testEnv{db: db, node: node, svc: svc, orderSvc: orderSvc, wallet: walletSvc, adapter: adapter, clock: fake}
}

// newOrder seeds a seller, buyer and one 5000 XOF product, and returns an
// order of two units, total 10000.
func (e *testEnv) newOrder(t *testing.T) orderdomain.Order {
	t.Helper()

	sellerID := e.node.Generate()
	require.NoError(t, e.db.Create(&userdomain.User{
		ID:           sellerID,
		Name:         "seller " + sellerID.String(),
		Phone:        "+22501" + sellerID.String(),
		Role:         userdomain.RoleSeller,
		ReferralCode: "RC" + sellerID.String(),
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}).Error)

	product := catalogdomain.Product{
		ID:        e.node.Generate(),
		SellerID:  sellerID,
		Title:     "widget",
		Price:     5000,
		Stock:     10,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.db.Create(&product).Error)

	order, err := e.orderSvc.Create(context.Background(), orderdomain.CreateOrderRequest{
		BuyerID:  e.node.Generate(),
		SellerID: sellerID,
		Items:    []orderdomain.CreateOrderItem{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	return order
}

func pendingResult(providerTxID string) func(gatewaydomain.PayinRequest) (gatewaydomain.PayinResult, error) {
	return func(gatewaydomain.PayinRequest) (gatewaydomain.PayinResult, error) {
		return gatewaydomain.PayinResult{ProviderTxID: providerTxID, Status: gatewaydomain.StatusPending}, nil
	}
}

func TestInitiatePayInCreatesPendingTransaction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	order := env.newOrder(t)
	env.adapter.initiate = pendingResult("pi_100")

	payin, err := env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:      order.ID,
		ClientID:     order.BuyerID,
		Provider:     "payrail",
		PayerContact: "+2250700000001",
	})
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.StatusPending, payin.Status)
	assert.Equal(t, "pi_100", payin.ProviderTxID)
	assert.Equal(t, int64(10000), payin.Amount)
	assert.False(t, payin.SellerCredited)

	got, err := env.orderSvc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPaymentPending, got.Status)
	assert.False(t, got.EscrowLocked)

	_, err = env.wallet.GetBalance(ctx, order.SellerID)
	assert.ErrorIs(t, err, walletdomain.ErrAccountNotFound)
}

func TestInitiatePayInSynchronousSuccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	order := env.newOrder(t)
	env.adapter.initiate = func(gatewaydomain.PayinRequest) (gatewaydomain.PayinResult, error) {
		return gatewaydomain.PayinResult{ProviderTxID: "pi_sync", Status: gatewaydomain.StatusSuccess}, nil
	}

	payin, err := env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:  order.ID,
		ClientID: order.BuyerID,
		Provider: "payrail",
	})
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.StatusSuccess, payin.Status)
	assert.True(t, payin.SellerCredited)
	assert.Equal(t, int64(9600), payin.NetAmount)

	account, err := env.wallet.GetBalance(ctx, order.SellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(9600), account.Locked)

	// The stored row carries the seller's share, not just the returned copy.
	stored, err := gatewayrepo.Provide().FindByProviderTxID(ctx, env.db, "pi_sync")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(9600), stored.NetAmount)
	assert.True(t, stored.SellerCredited)
}

func TestInitiatePayInEstimatesFeesFromConfig(t *testing.T) {
	ctx := context.Background()
	env := newTestEnvWithConfig(t, config.Config{
		Payrail: config.ProviderConfig{FeeBps: 180},
	})
	order := env.newOrder(t)
	env.adapter.initiate = pendingResult("pi_fee")

	payin, err := env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:  order.ID,
		ClientID: order.BuyerID,
		Provider: "payrail",
	})
	require.NoError(t, err)
	// 180 bps of the 10000 total; the provider quoted nothing at initiation.
	assert.Equal(t, int64(180), payin.Fees)

	stored, err := gatewayrepo.Provide().FindByProviderTxID(ctx, env.db, "pi_fee")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(180), stored.Fees)
}

func TestInitiatePayInKeepsProviderQuotedFees(t *testing.T) {
	ctx := context.Background()
	env := newTestEnvWithConfig(t, config.Config{
		Payrail: config.ProviderConfig{FeeBps: 180},
	})
	order := env.newOrder(t)
	env.adapter.initiate = func(gatewaydomain.PayinRequest) (gatewaydomain.PayinResult, error) {
		return gatewaydomain.PayinResult{ProviderTxID: "pi_quoted", Status: gatewaydomain.StatusPending, Fees: 250}, nil
	}

	payin, err := env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:  order.ID,
		ClientID: order.BuyerID,
		Provider: "payrail",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), payin.Fees)
}

func TestInitiatePayInUnknownProvider(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	order := env.newOrder(t)

	_, err := env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:  order.ID,
		Provider: "cashapp",
	})
	assert.ErrorIs(t, err, gatewaydomain.ErrProviderNotFound)
}

func TestVerifyPayInSettlesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	order := env.newOrder(t)
	env.adapter.initiate = pendingResult("pi_200")
	env.adapter.verify = func(providerTxID string) (gatewaydomain.PayinResult, error) {
		return gatewaydomain.PayinResult{ProviderTxID: providerTxID, Status: gatewaydomain.StatusSuccess}, nil
	}

	_, err := env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:  order.ID,
		ClientID: order.BuyerID,
		Provider: "payrail",
	})
	require.NoError(t, err)

	payin, err := env.svc.VerifyPayIn(ctx, "pi_200")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.StatusSuccess, payin.Status)
	assert.True(t, payin.SellerCredited)

	stored, err := gatewayrepo.Provide().FindByProviderTxID(ctx, env.db, "pi_200")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(9600), stored.NetAmount)

	account, err := env.wallet.GetBalance(ctx, order.SellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(9600), account.Locked)

	got, err := env.orderSvc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPaid, got.Status)

	// A settled pay-in answers from local state, no provider round-trip.
	again, err := env.svc.VerifyPayIn(ctx, "pi_200")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.StatusSuccess, again.Status)
	assert.Equal(t, 1, env.adapter.verifyCalls)

	account, err = env.wallet.GetBalance(ctx, order.SellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(9600), account.Locked)
}

func TestVerifyPayInFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	order := env.newOrder(t)
	env.adapter.initiate = pendingResult("pi_300")
	env.adapter.verify = func(providerTxID string) (gatewaydomain.PayinResult, error) {
		return gatewaydomain.PayinResult{ProviderTxID: providerTxID, Status: gatewaydomain.StatusFailed}, nil
	}

	_, err := env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:  order.ID,
		ClientID: order.BuyerID,
		Provider: "payrail",
	})
	require.NoError(t, err)

	payin, err := env.svc.VerifyPayIn(ctx, "pi_300")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.StatusFailed, payin.Status)
	assert.False(t, payin.SellerCredited)

	_, err = env.wallet.GetBalance(ctx, order.SellerID)
	assert.ErrorIs(t, err, walletdomain.ErrAccountNotFound)
}

func TestVerifyPayInInconclusiveStaysPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	order := env.newOrder(t)
	env.adapter.initiate = pendingResult("pi_400")
	env.adapter.verify = func(string) (gatewaydomain.PayinResult, error) {
		return gatewaydomain.PayinResult{}, errors.New("provider timeout")
	}

	_, err := env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:  order.ID,
		ClientID: order.BuyerID,
		Provider: "payrail",
	})
	require.NoError(t, err)

	payin, err := env.svc.VerifyPayIn(ctx, "pi_400")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.StatusPending, payin.Status)
}

func TestVerifyPayInUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.VerifyPayIn(ctx, "pi_missing")
	assert.ErrorIs(t, err, gatewaydomain.ErrPayinNotFound)
}

func TestPollPendingPayinsHonorsWindow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	stale := env.newOrder(t)
	env.adapter.initiate = pendingResult("pi_old")
	_, err := env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:  stale.ID,
		ClientID: stale.BuyerID,
		Provider: "payrail",
	})
	require.NoError(t, err)

	env.clock.Advance(11 * time.Minute)

	fresh := env.newOrder(t)
	env.adapter.initiate = pendingResult("pi_new")
	_, err = env.svc.InitiatePayIn(ctx, gatewaydomain.InitiatePayinRequest{
		OrderID:  fresh.ID,
		ClientID: fresh.BuyerID,
		Provider: "payrail",
	})
	require.NoError(t, err)

	env.adapter.verify = func(providerTxID string) (gatewaydomain.PayinResult, error) {
		return gatewaydomain.PayinResult{ProviderTxID: providerTxID, Status: gatewaydomain.StatusSuccess}, nil
	}

	// Only the pay-in inside the poll window gets inspected; the stale one is
	// left for manual verification.
	count, err := env.svc.PollPendingPayins(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, env.adapter.verifyCalls)

	settled, err := env.svc.VerifyPayIn(ctx, "pi_new")
	require.NoError(t, err)
	assert.True(t, settled.SellerCredited)

	old, err := env.svc.VerifyPayIn(ctx, "pi_old")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.StatusSuccess, old.Status)
}
