package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/kolopay/kolopay/internal/catalog/domain"
	"github.com/kolopay/kolopay/internal/config"
	gatewaydomain "github.com/kolopay/kolopay/internal/gateway/domain"
	orderdomain "github.com/kolopay/kolopay/internal/order/domain"
	payoutdomain "github.com/kolopay/kolopay/internal/payout/domain"
	referraldomain "github.com/kolopay/kolopay/internal/referral/domain"
	"github.com/kolopay/kolopay/internal/scheduler"
	userdomain "github.com/kolopay/kolopay/internal/user/domain"
	walletdomain "github.com/kolopay/kolopay/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware(log))
	r.Use(TracingMiddleware())
	r.Use(IdentityMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	userSvc     userdomain.Service
	catalogSvc  catalogdomain.Service
	orderSvc    orderdomain.Service
	walletSvc   walletdomain.Service
	gatewaySvc  gatewaydomain.Service
	payoutSvc   payoutdomain.Service
	referralSvc referraldomain.Service
	scheduler   *scheduler.Scheduler
	log         *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	UserSvc     userdomain.Service
	CatalogSvc  catalogdomain.Service
	OrderSvc    orderdomain.Service
	WalletSvc   walletdomain.Service
	GatewaySvc  gatewaydomain.Service
	PayoutSvc   payoutdomain.Service
	ReferralSvc referraldomain.Service
	Scheduler   *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		userSvc:     p.UserSvc,
		catalogSvc:  p.CatalogSvc,
		orderSvc:    p.OrderSvc,
		walletSvc:   p.WalletSvc,
		gatewaySvc:  p.GatewaySvc,
		payoutSvc:   p.PayoutSvc,
		referralSvc: p.ReferralSvc,
		scheduler:   p.Scheduler,
	}

	s.registerAPIRoutes()
	s.registerWebhookRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/users", s.RegisterUser)
	v1.GET("/users/:id", s.GetUser)

	v1.POST("/products", AuthRequired(), RequireRole("seller"), s.CreateProduct)
	v1.GET("/products", s.ListProducts)

	v1.POST("/orders", AuthRequired(), s.CreateOrder)
	v1.GET("/orders", AuthRequired(), s.ListOrders)
	v1.GET("/orders/:id", AuthRequired(), s.GetOrder)
	v1.POST("/orders/:id/confirm", AuthRequired(), s.ConfirmOrder)
	v1.POST("/orders/:id/assign", AuthRequired(), RequireRole("seller", "admin"), s.AssignOrder)
	v1.POST("/orders/:id/ship", AuthRequired(), RequireRole("seller", "delivery", "admin"), s.ShipOrder)
	v1.POST("/orders/:id/deliver", AuthRequired(), RequireRole("delivery", "admin"), s.DeliverOrder)
	v1.POST("/orders/:id/cancel", AuthRequired(), s.CancelOrder)

	v1.POST("/payins", AuthRequired(), s.InitiatePayin)
	v1.POST("/payins/:providerTxId/verify", s.VerifyPayin)

	v1.GET("/wallet", AuthRequired(), s.GetWallet)
	v1.GET("/wallet/transactions", AuthRequired(), s.ListWalletTransactions)

	v1.POST("/payouts", AuthRequired(), RequireRole("seller"), s.CreatePayout)
	v1.GET("/payouts", AuthRequired(), RequireRole("seller"), s.ListPayouts)

	v1.POST("/referrals/apply", AuthRequired(), s.ApplyReferralCode)
	v1.GET("/referrals/commissions", AuthRequired(), s.ListCommissions)
	v1.GET("/referrals/stats", AuthRequired(), s.GetReferralStats)

	v1.POST("/sweeps/:name", AuthRequired(), RequireRole("admin"), s.TriggerSweep)
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/webhooks")

	hooks.POST("/payrail/payouts", s.PayoutWebhook("payrail"))
	hooks.POST("/mobicash/payouts", s.PayoutWebhook("mobicash"))
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
