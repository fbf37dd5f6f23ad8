package order

import (
	"github.com/kolopay/kolopay/internal/order/repository"
	"github.com/kolopay/kolopay/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
