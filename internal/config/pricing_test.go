package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPricingConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadPricingConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.RuleCacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.StatusSweepInterval)
	assert.Empty(t, cfg.DefaultPriorities)
}

func TestLoadPricingConfigReadsOverrides(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`pricing:
  ruleCacheTTL: 30s
  statusSweepInterval: 1m
  defaultPriorities:
    PROMOTION: 150
    category: 25
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), content, 0o600))

	cfg, err := LoadPricingConfig(dir)
	require.NoError(t, err)

	holder := NewStaticPricingConfigHolder(cfg)
	snapshot := holder.Get()
	assert.Equal(t, 30*time.Second, snapshot.RuleCacheTTL)
	assert.Equal(t, time.Minute, snapshot.StatusSweepInterval)
	assert.Equal(t, 150, snapshot.DefaultPriorities["PROMOTION"])
	assert.Equal(t, 25, snapshot.DefaultPriorities["CATEGORY"])
}

func TestPricingConfigHolderReturnsCopies(t *testing.T) {
	holder := NewStaticPricingConfigHolder(PricingConfig{DefaultPriorities: map[string]int{"ITEM": 61}})

	snapshot := holder.Get()
	snapshot.DefaultPriorities["ITEM"] = 1

	assert.Equal(t, 61, holder.Get().DefaultPriorities["ITEM"])
}

func TestLoadPricingConfigRejectsNegativeTTL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), []byte("pricing:\n  ruleCacheTTL: -1s\n"), 0o600))

	_, err := LoadPricingConfig(dir)
	assert.Error(t, err)
}
