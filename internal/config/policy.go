package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Policy holds the money-movement knobs that operations tune without a
// redeploy: platform fee, commission rates, release delays and the escrow
// confirmation rule.
type Policy struct {
	PlatformFeeBps int64 `mapstructure:"platformFeeBps"`

	ReferralLevel1Bps    int64         `mapstructure:"referralLevel1Bps"`
	GainCommissionDelay  time.Duration `mapstructure:"gainCommissionDelay"`
	ReferralSignupWindow time.Duration `mapstructure:"referralSignupWindow"`
	ReferralRoles        []string      `mapstructure:"referralRoles"`

	RequireDeliveryBeforeConfirm bool `mapstructure:"requireDeliveryBeforeConfirm"`

	PayinPollWindow      time.Duration `mapstructure:"payinPollWindow"`
	PayoutStuckThreshold time.Duration `mapstructure:"payoutStuckThreshold"`
}

func DefaultPolicy() Policy {
	return Policy{
		PlatformFeeBps:               400,
		ReferralLevel1Bps:            150,
		GainCommissionDelay:          7 * 24 * time.Hour,
		ReferralSignupWindow:         7 * 24 * time.Hour,
		ReferralRoles:                []string{"buyer", "seller", "delivery"},
		RequireDeliveryBeforeConfirm: false,
		PayinPollWindow:              10 * time.Minute,
		PayoutStuckThreshold:         30 * time.Minute,
	}
}

// PolicyHolder keeps the current Policy behind an atomic.Value so a reload
// never races readers mid-request.
type PolicyHolder struct {
	current atomic.Value // holds Policy
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/kolopay/config")
	v.AddConfigPath("/etc/kolopay")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KOLOPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PolicyHolder{}

	load := func() error {
		cfg := DefaultPolicy()
		if err := v.UnmarshalKey("policy", &cfg); err != nil {
			return err
		}
		if err := validatePolicy(cfg); err != nil {
			return err
		}
		holder.current.Store(cfg)
		return nil
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPolicy())
	} else {
		if err := load(); err != nil {
			return nil, err
		}
		v.OnConfigChange(func(fsnotify.Event) {
			if err := load(); err != nil {
				log.Printf("policy reload rejected: %v", err)
			}
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *PolicyHolder) Current() Policy {
	cfg, ok := h.current.Load().(Policy)
	if !ok {
		return DefaultPolicy()
	}
	return cfg
}

// Replace swaps the active policy. Used by tests.
func (h *PolicyHolder) Replace(p Policy) {
	h.current.Store(p)
}

func validatePolicy(p Policy) error {
	if p.PlatformFeeBps < 0 || p.PlatformFeeBps >= 10000 {
		return errors.New("platform fee must be within [0, 10000) bps")
	}
	if p.ReferralLevel1Bps < 0 || p.ReferralLevel1Bps >= 10000 {
		return errors.New("referral level-1 rate must be within [0, 10000) bps")
	}
	if p.GainCommissionDelay < 0 || p.ReferralSignupWindow < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}
