package config

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// LoyaltyConfig describes the point-earning policy applied to completed
// transactions. Amounts are in minor currency units (cents).
type LoyaltyConfig struct {
	// PointsPerUnit is the number of points earned per whole currency unit
	// spent, before the tier multiplier. Earned points are floored.
	PointsPerUnit float64 `mapstructure:"pointsPerUnit"`
	// MinorUnitsPerUnit converts stored amounts to currency units (100 for
	// cent-based currencies).
	MinorUnitsPerUnit int64 `mapstructure:"minorUnitsPerUnit"`
	// PointExpiryDays is the lifetime of an EARNED credit. Zero disables
	// expiry.
	PointExpiryDays int `mapstructure:"pointExpiryDays"`
	// ReconcileBatchSize bounds how many customers a single all-customers
	// reconciliation pass loads at a time.
	ReconcileBatchSize int `mapstructure:"reconcileBatchSize"`
}

// DefaultLoyaltyConfig returns the policy used when no loyalty.yml exists.
func DefaultLoyaltyConfig() LoyaltyConfig {
	return LoyaltyConfig{
		PointsPerUnit:      1,
		MinorUnitsPerUnit:  100,
		PointExpiryDays:    365,
		ReconcileBatchSize: 200,
	}
}

// LoyaltyConfigHolder exposes the current loyalty policy with hot reload.
type LoyaltyConfigHolder struct {
	current atomic.Value // holds LoyaltyConfig
}

// NewLoyaltyConfigHolder reads loyalty.yml and watches it for changes.
func NewLoyaltyConfigHolder(log *zap.Logger) (*LoyaltyConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("loyalty")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/stampkit/config")
	v.AddConfigPath("/etc/stampkit")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STAMPKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &LoyaltyConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultLoyaltyConfig())
		return holder, nil
	}

	cfg, err := unmarshalLoyalty(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.OnConfigChange(func(_ fsnotify.Event) {
		reloaded, err := unmarshalLoyalty(v)
		if err != nil {
			if log != nil {
				log.Warn("loyalty config reload failed", zap.Error(err))
			}
			return
		}
		holder.current.Store(reloaded)
		if log != nil {
			log.Info("loyalty config reloaded")
		}
	})
	v.WatchConfig()

	return holder, nil
}

// Current returns the active loyalty policy.
func (h *LoyaltyConfigHolder) Current() LoyaltyConfig {
	if h == nil {
		return DefaultLoyaltyConfig()
	}
	value, ok := h.current.Load().(LoyaltyConfig)
	if !ok {
		return DefaultLoyaltyConfig()
	}
	return value
}

func unmarshalLoyalty(v *viper.Viper) (LoyaltyConfig, error) {
	cfg := DefaultLoyaltyConfig()
	if err := v.UnmarshalKey("loyalty", &cfg); err != nil {
		return LoyaltyConfig{}, err
	}
	if cfg.PointsPerUnit <= 0 {
		cfg.PointsPerUnit = DefaultLoyaltyConfig().PointsPerUnit
	}
	if cfg.MinorUnitsPerUnit <= 0 {
		cfg.MinorUnitsPerUnit = DefaultLoyaltyConfig().MinorUnitsPerUnit
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = DefaultLoyaltyConfig().ReconcileBatchSize
	}
	return cfg, nil
}
