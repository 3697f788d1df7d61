package scheduler

import (
	"time"

	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/ratelimit"
)

// Config controls the status sweep loop.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockKey     string
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 5 * time.Minute,
		JobTimeout:  30 * time.Second,
		LockTTL:     time.Minute,
	}
}

// ProvideConfig derives the scheduler config from the process config. The run
// interval is re-read from the pricing config on every tick.
func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.LockKey, c.LockTTL = ratelimit.StatusSweepLock(cfg)
	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
