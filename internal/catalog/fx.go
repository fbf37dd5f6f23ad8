package catalog

import (
	"github.com/kolopay/kolopay/internal/catalog/repository"
	"github.com/kolopay/kolopay/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
