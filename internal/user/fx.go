package user

import (
	"github.com/kolopay/kolopay/internal/user/repository"
	"github.com/kolopay/kolopay/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
