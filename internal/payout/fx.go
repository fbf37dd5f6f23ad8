package payout

import (
	"github.com/kolopay/kolopay/internal/payout/repository"
	"github.com/kolopay/kolopay/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
