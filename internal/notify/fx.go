package notify

import (
	"github.com/kolopay/kolopay/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.notify",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the SMTP provider, or a no-op one when mail is not
// configured so callers never need a nil check.
func NewFromConfig(cfg config.Config) Provider {
	if cfg.NotifySMTPHost == "" {
		return &NoOpProvider{}
	}
	return NewSMTP(Config{
		Host:     cfg.NotifySMTPHost,
		Port:     cfg.NotifySMTPPort,
		Username: cfg.NotifySMTPUser,
		Password: cfg.NotifySMTPPass,
		From:     cfg.NotifyFrom,
	})
}
