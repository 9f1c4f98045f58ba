package scheduler

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	// RunInterval is the pace of the main loop. The expiry sweep runs on
	// every tick; heavier jobs keep their own cadence below.
	RunInterval time.Duration

	// ReconcileInterval is how often the full balance reconciliation runs
	// across every restaurant.
	ReconcileInterval time.Duration

	ExpiryBatchSize     int
	RestaurantBatchSize int

	// EnabledJobs limits which jobs run. Empty means all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:         time.Minute,
		ReconcileInterval:   24 * time.Hour,
		ExpiryBatchSize:     200,
		RestaurantBatchSize: 50,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = defaults.ReconcileInterval
	}
	if c.ExpiryBatchSize <= 0 {
		c.ExpiryBatchSize = defaults.ExpiryBatchSize
	}
	if c.RestaurantBatchSize <= 0 {
		c.RestaurantBatchSize = defaults.RestaurantBatchSize
	}
	return c
}

// ProvideConfig reads scheduler tuning from the environment.
func ProvideConfig() Config {
	cfg := DefaultConfig()
	if v := getenvDuration("SCHEDULER_RUN_INTERVAL"); v > 0 {
		cfg.RunInterval = v
	}
	if v := getenvDuration("SCHEDULER_RECONCILE_INTERVAL"); v > 0 {
		cfg.ReconcileInterval = v
	}
	if v := getenvInt("SCHEDULER_EXPIRY_BATCH_SIZE"); v > 0 {
		cfg.ExpiryBatchSize = v
	}
	if v := getenvInt("SCHEDULER_RESTAURANT_BATCH_SIZE"); v > 0 {
		cfg.RestaurantBatchSize = v
	}
	if v := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED_JOBS")); v != "" {
		for _, job := range strings.Split(v, ",") {
			if job = strings.TrimSpace(job); job != "" {
				cfg.EnabledJobs = append(cfg.EnabledJobs, job)
			}
		}
	}
	return cfg
}

func getenvDuration(key string) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return parsed
}

func getenvInt(key string) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
