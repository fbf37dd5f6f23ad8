package wallet

import (
	"github.com/kolopay/kolopay/internal/wallet/repository"
	"github.com/kolopay/kolopay/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
