package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingConfig is the operator-tunable part of the pricing engine.
type PricingConfig struct {
	// DefaultPriorities overrides the built-in priority per rule type, keyed by rule type (e.g. "PROMOTION").
	DefaultPriorities   map[string]int `mapstructure:"defaultPriorities"`
	RuleCacheTTL        time.Duration  `mapstructure:"ruleCacheTTL"`
	StatusSweepInterval time.Duration  `mapstructure:"statusSweepInterval"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		DefaultPriorities:   map[string]int{},
		RuleCacheTTL:        time.Minute,
		StatusSweepInterval: 5 * time.Minute,
	}
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewStaticPricingConfigHolder returns a holder that never reloads.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(clonePricingConfig(cfg))
	return holder
}

// NewPricingConfigHolder reads pricing.yml from the configured paths and watches it for changes.
func NewPricingConfigHolder(appCfg Config, log *zap.Logger) (*PricingConfigHolder, error) {
	v, found, err := newPricingViper(appCfg.PricingConfigPaths)
	if err != nil {
		return nil, err
	}

	cfg, err := decodePricingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPricingConfigHolder(cfg)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePricingConfig(v)
		if err != nil {
			log.Warn("pricing config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(clonePricingConfig(updated))
		log.Info("pricing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// LoadPricingConfig reads pricing.yml once from the given paths, falling back to defaults.
func LoadPricingConfig(paths ...string) (PricingConfig, error) {
	v, _, err := newPricingViper(paths)
	if err != nil {
		return PricingConfig{}, err
	}
	return decodePricingConfig(v)
}

// Get returns a copy of the current snapshot.
func (h *PricingConfigHolder) Get() PricingConfig {
	return clonePricingConfig(h.current.Load().(PricingConfig))
}

func newPricingViper(paths []string) (*viper.Viper, bool, error) {
	v := viper.New()
	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	for _, path := range paths {
		if strings.TrimSpace(path) != "" {
			v.AddConfigPath(path)
		}
	}

	v.SetEnvPrefix("PRICERULES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.ruleCacheTTL", defaults.RuleCacheTTL)
	v.SetDefault("pricing.statusSweepInterval", defaults.StatusSweepInterval)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, false, err
		}
		return v, false, nil
	}
	return v, true, nil
}

func decodePricingConfig(v *viper.Viper) (PricingConfig, error) {
	// Unmarshal goes through AllSettings so defaults merge with a partial file.
	var doc struct {
		Pricing PricingConfig `mapstructure:"pricing"`
	}
	if err := v.Unmarshal(&doc); err != nil {
		return PricingConfig{}, err
	}
	if err := validatePricingConfig(doc.Pricing); err != nil {
		return PricingConfig{}, err
	}
	return doc.Pricing, nil
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.RuleCacheTTL < 0 {
		return errors.New("pricing.ruleCacheTTL cannot be negative")
	}
	if cfg.StatusSweepInterval < 0 {
		return errors.New("pricing.statusSweepInterval cannot be negative")
	}
	return nil
}

func clonePricingConfig(cfg PricingConfig) PricingConfig {
	priorities := make(map[string]int, len(cfg.DefaultPriorities))
	for key, value := range cfg.DefaultPriorities {
		priorities[strings.ToUpper(strings.TrimSpace(key))] = value
	}
	cfg.DefaultPriorities = priorities
	return cfg
}
