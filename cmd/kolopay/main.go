package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/catalog"
	"github.com/kolopay/kolopay/internal/clock"
	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/gateway"
	"github.com/kolopay/kolopay/internal/logger"
	"github.com/kolopay/kolopay/internal/migration"
	"github.com/kolopay/kolopay/internal/notify"
	obsmetrics "github.com/kolopay/kolopay/internal/observability/metrics"
	"github.com/kolopay/kolopay/internal/order"
	"github.com/kolopay/kolopay/internal/payout"
	"github.com/kolopay/kolopay/internal/referral"
	"github.com/kolopay/kolopay/internal/scheduler"
	"github.com/kolopay/kolopay/internal/server"
	"github.com/kolopay/kolopay/internal/sweeplock"
	"github.com/kolopay/kolopay/internal/user"
	"github.com/kolopay/kolopay/internal/wallet"
	"github.com/kolopay/kolopay/pkg/db"
	"github.com/kolopay/kolopay/pkg/telemetry"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		telemetry.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		sweeplock.Module,
		notify.Module,

		user.Module,
		catalog.Module,
		wallet.Module,
		order.Module,
		referral.Module,
		gateway.Module,
		payout.Module,
		scheduler.Module,

		fx.Invoke(func(cfg config.Config) {
			obsmetrics.WithConfig(obsmetrics.Config{
				ServiceName: cfg.AppName,
				Environment: cfg.Environment,
			})
		}),

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
