package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/kolopay/kolopay/internal/catalog/domain"
	catalogrepo "github.com/kolopay/kolopay/internal/catalog/repository"
	catalogservice "github.com/kolopay/kolopay/internal/catalog/service"
	"github.com/kolopay/kolopay/internal/clock"
	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/gateway/adapters"
	gatewaydomain "github.com/kolopay/kolopay/internal/gateway/domain"
	gatewayrepo "github.com/kolopay/kolopay/internal/gateway/repository"
	gatewayservice "github.com/kolopay/kolopay/internal/gateway/service"
	orderdomain "github.com/kolopay/kolopay/internal/order/domain"
	orderrepo "github.com/kolopay/kolopay/internal/order/repository"
	orderservice "github.com/kolopay/kolopay/internal/order/service"
	payoutdomain "github.com/kolopay/kolopay/internal/payout/domain"
	payoutrepo "github.com/kolopay/kolopay/internal/payout/repository"
	payoutservice "github.com/kolopay/kolopay/internal/payout/service"
	referraldomain "github.com/kolopay/kolopay/internal/referral/domain"
	referralrepo "github.com/kolopay/kolopay/internal/referral/repository"
	referralservice "github.com/kolopay/kolopay/internal/referral/service"
	"github.com/kolopay/kolopay/internal/scheduler"
	userdomain "github.com/kolopay/kolopay/internal/user/domain"
	userrepo "github.com/kolopay/kolopay/internal/user/repository"
	userservice "github.com/kolopay/kolopay/internal/user/service"
	walletdomain "github.com/kolopay/kolopay/internal/wallet/domain"
	walletrepo "github.com/kolopay/kolopay/internal/wallet/repository"
	walletservice "github.com/kolopay/kolopay/internal/wallet/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubAdapter struct {
	initiatePayin  gatewaydomain.PayinResult
	verifyPayin    gatewaydomain.PayinResult
	initiatePayout gatewaydomain.PayoutResult
}

func (a *stubAdapter) Provider() string { return "payrail" }

func (a *stubAdapter) InitiatePayIn(context.Context, gatewaydomain.PayinRequest) (gatewaydomain.PayinResult, error) {
	return a.initiatePayin, nil
}

func (a *stubAdapter) VerifyPayIn(context.Context, string) (gatewaydomain.PayinResult, error) {
	return a.verifyPayin, nil
}

func (a *stubAdapter) InitiatePayOut(context.Context, gatewaydomain.PayoutRequest) (gatewaydomain.PayoutResult, error) {
	return a.initiatePayout, nil
}

func (a *stubAdapter) VerifyPayOut(context.Context, string) (gatewaydomain.PayoutResult, error) {
	return a.initiatePayout, nil
}

func (a *stubAdapter) ParsePayoutWebhook(payload []byte) (gatewaydomain.WebhookResult, error) {
	var body struct {
		Reference string `json:"reference"`
		Succeeded bool   `json:"succeeded"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Reference == "" {
		return gatewaydomain.WebhookResult{}, gatewaydomain.ErrInvalidPayload
	}
	return gatewaydomain.WebhookResult{Reference: body.Reference, Succeeded: body.Succeeded, Raw: payload}, nil
}

type stubFactory struct {
	adapter *stubAdapter
}

func (f *stubFactory) Provider() string { return "payrail" }

func (f *stubFactory) NewAdapter(config.ProviderConfig) (gatewaydomain.Adapter, error) {
	return f.adapter, nil
}

type testServer struct {
	engine  *gin.Engine
	adapter *stubAdapter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:memdb_server_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
		&payoutdomain.Transaction{},
		&referraldomain.Referral{},
		&referraldomain.Commission{},
		&referraldomain.Stats{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	log := zap.NewNop()
	policy := &config.PolicyHolder{}
	policy.Replace(config.DefaultPolicy())
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	adapter := &stubAdapter{}
	registry := adapters.NewRegistry(&stubFactory{adapter: adapter})

	userSvc := userservice.NewService(userservice.Params{DB: db, Log: log, GenID: node, Repo: userrepo.Provide()})
	catalogSvc := catalogservice.NewService(catalogservice.Params{DB: db, Log: log, GenID: node, Repo: catalogrepo.Provide()})
	walletSvc := walletservice.NewService(walletservice.Params{DB: db, Log: log, GenID: node, Repo: walletrepo.Provide()})
	referralSvc := referralservice.NewService(referralservice.Params{
		DB: db, Log: log, GenID: node, Policy: policy,
		Repo: referralrepo.Provide(), UserRepo: userrepo.Provide(), WalletSvc: walletSvc,
	})
	orderSvc := orderservice.NewService(orderservice.Params{
		DB: db, Log: log, GenID: node, Policy: policy,
		Repo: orderrepo.Provide(), WalletSvc: walletSvc,
		CatalogRepo: catalogrepo.Provide(), UserRepo: userrepo.Provide(),
		ReferralSvc: referralSvc,
	})
	gatewaySvc := gatewayservice.NewService(gatewayservice.Params{
		DB: db, Log: log, GenID: node, Cfg: config.Config{}, Policy: policy, Clock: fakeClock,
		Repo: gatewayrepo.Provide(), OrderSvc: orderSvc, Registry: registry,
	})
	payoutSvc := payoutservice.NewService(payoutservice.Params{
		DB: db, Log: log, GenID: node, Cfg: config.Config{}, Policy: policy, Clock: fakeClock,
		Repo: payoutrepo.Provide(), WalletSvc: walletSvc, Registry: registry,
	})
	sched, err := scheduler.New(scheduler.Params{
		Log: log, Clock: fakeClock,
		GatewaySvc: gatewaySvc, ReferralSvc: referralSvc, PayoutSvc: payoutSvc,
	})
	require.NoError(t, err)

	engine := NewEngine(log)
	NewServer(ServerParams{
		Gin: engine, Cfg: config.Config{}, Log: log,
		UserSvc: userSvc, CatalogSvc: catalogSvc, OrderSvc: orderSvc,
		WalletSvc: walletSvc, GatewaySvc: gatewaySvc, PayoutSvc: payoutSvc,
		ReferralSvc: referralSvc, Scheduler: sched,
	})

	return &testServer{engine: engine, adapter: adapter}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, userID, role string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
		req.Header.Set("X-User-Role", role)
	}

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

type userPayload struct {
	ID           string `json:"id"`
	ReferralCode string `json:"referral_code"`
}

func registerUser(t *testing.T, ts *testServer, role string) userPayload {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/v1/users", gin.H{
		"name":  "Test " + role,
		"phone": fmt.Sprintf("+22507%09d", time.Now().UnixNano()%1_000_000_000),
		"role":  role,
	}, "", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data userPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWalletRequiresIdentity(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/wallet", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownOrderIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	buyer := registerUser(t, ts, "buyer")

	rec := ts.do(t, http.MethodGet, "/v1/orders/123456789", nil, buyer.ID, "buyer")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error.Type)
}

func TestProductCreationRequiresSellerRole(t *testing.T) {
	ts := newTestServer(t)
	buyer := registerUser(t, ts, "buyer")

	rec := ts.do(t, http.MethodPost, "/v1/products", gin.H{"title": "Basket", "price": 1500}, buyer.ID, "buyer")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookAlwaysAcks(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payrail/payouts", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownSweepIsRejected(t *testing.T) {
	ts := newTestServer(t)
	admin := registerUser(t, ts, "admin")

	rec := ts.do(t, http.MethodPost, "/v1/sweeps/defrag", nil, admin.ID, "admin")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderEscrowLifecycle(t *testing.T) {
	ts := newTestServer(t)
	seller := registerUser(t, ts, "seller")
	buyer := registerUser(t, ts, "buyer")

	rec := ts.do(t, http.MethodPost, "/v1/products", gin.H{
		"title": "Wax print fabric",
		"price": 5000,
		"stock": 10,
	}, seller.ID, "seller")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var productResp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &productResp))

	rec = ts.do(t, http.MethodPost, "/v1/orders", gin.H{
		"seller_id": seller.ID,
		"items": []gin.H{
			{"product_id": productResp.Data.ID, "quantity": 2},
		},
	}, buyer.ID, "buyer")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var orderResp struct {
		Data struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			TotalAmount int64  `json:"total_amount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orderResp))
	assert.Equal(t, string(orderdomain.StatusCreated), orderResp.Data.Status)
	assert.Equal(t, int64(10000), orderResp.Data.TotalAmount)
	orderID := orderResp.Data.ID

	// Provider accepts collection asynchronously.
	ts.adapter.initiatePayin = gatewaydomain.PayinResult{
		ProviderTxID: "pi_100",
		Status:       gatewaydomain.StatusPending,
	}
	rec = ts.do(t, http.MethodPost, "/v1/payins", gin.H{
		"order_id":      orderID,
		"provider":      "payrail",
		"payer_contact": "+2250700000001",
	}, buyer.ID, "buyer")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	ts.adapter.verifyPayin = gatewaydomain.PayinResult{
		ProviderTxID: "pi_100",
		Status:       gatewaydomain.StatusSuccess,
	}
	rec = ts.do(t, http.MethodPost, "/v1/payins/pi_100/verify", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 10000 at a 4% platform fee locks 9600 for the seller.
	rec = ts.do(t, http.MethodGet, "/v1/wallet", nil, seller.ID, "seller")
	require.Equal(t, http.StatusOK, rec.Code)
	var walletResp struct {
		Data struct {
			Available int64 `json:"available"`
			Locked    int64 `json:"locked"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &walletResp))
	assert.Equal(t, int64(0), walletResp.Data.Available)
	assert.Equal(t, int64(9600), walletResp.Data.Locked)

	for _, step := range []struct {
		path string
		role string
	}{
		{"assign", "seller"},
		{"ship", "seller"},
		{"deliver", "delivery"},
	} {
		actor := seller
		if step.role == "delivery" {
			actor = registerUser(t, ts, "delivery")
		}
		rec = ts.do(t, http.MethodPost, "/v1/orders/"+orderID+"/"+step.path, nil, actor.ID, step.role)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	// Confirming as someone else is rejected before any funds move.
	rec = ts.do(t, http.MethodPost, "/v1/orders/"+orderID+"/confirm", nil, seller.ID, "seller")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/orders/"+orderID+"/confirm", nil, buyer.ID, "buyer")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/wallet", nil, seller.ID, "seller")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &walletResp))
	assert.Equal(t, int64(9600), walletResp.Data.Available)
	assert.Equal(t, int64(0), walletResp.Data.Locked)

	// Seller withdraws the full balance.
	ts.adapter.initiatePayout = gatewaydomain.PayoutResult{
		ProviderTxID: "tr_100",
		Status:       gatewaydomain.StatusSuccess,
		SentAmount:   9600,
	}
	rec = ts.do(t, http.MethodPost, "/v1/payouts", gin.H{
		"provider": "payrail",
		"contact":  "+2250700000002",
	}, seller.ID, "seller")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/wallet", nil, seller.ID, "seller")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &walletResp))
	assert.Equal(t, int64(0), walletResp.Data.Available)
}
