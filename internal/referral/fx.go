package referral

import (
	"github.com/kolopay/kolopay/internal/referral/repository"
	"github.com/kolopay/kolopay/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
