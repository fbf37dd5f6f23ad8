package gateway

import (
	"github.com/kolopay/kolopay/internal/gateway/adapters"
	"github.com/kolopay/kolopay/internal/gateway/adapters/mobicash"
	"github.com/kolopay/kolopay/internal/gateway/adapters/payrail"
	"github.com/kolopay/kolopay/internal/gateway/repository"
	"github.com/kolopay/kolopay/internal/gateway/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			payrail.NewFactory(),
			mobicash.NewFactory(),
		)
	}),
	fx.Provide(service.NewService),
)
