package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jengzang/machine-efficiency-go/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, ":5000", cfg.Port)
	require.Equal(t, 0.2, cfg.Split.TestSize)
	require.Equal(t, uint64(42), cfg.Split.Seed)
	require.Equal(t, 1000, cfg.Training.MaxIter)
	require.Equal(t, []string{"Low", "Medium", "High"}, cfg.Encoding.EfficiencyLabels)
	require.Equal(t, filepath.Join("artifacts", "current.json"), cfg.Paths.Current())
	require.False(t, cfg.Mirror.Enabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: ":9000"
split:
  test_size: 0.25
  seed: 7
encoding:
  operation_modes: []
rate_limit:
  requests: 10
  window: 30s
`), 0o644))

	t.Setenv("PORT", "8081")
	t.Setenv("TRAIN_MAX_ITER", "50")
	t.Setenv("EFFICIENCY_LABELS", "Bad, Good")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8081", cfg.Port)
	require.Equal(t, 0.25, cfg.Split.TestSize)
	require.Equal(t, uint64(7), cfg.Split.Seed)
	require.Equal(t, 50, cfg.Training.MaxIter)
	require.Empty(t, cfg.Encoding.OperationModes)
	require.Equal(t, []string{"Bad", "Good"}, cfg.Encoding.EfficiencyLabels)
	require.Equal(t, 10, cfg.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*config.Config){
		"test size":     func(c *config.Config) { c.Split.TestSize = 1 },
		"max iter":      func(c *config.Config) { c.Training.MaxIter = 0 },
		"regularizer":   func(c *config.Config) { c.Training.C = 0 },
		"mirror bucket": func(c *config.Config) { c.Mirror.Endpoint = "localhost:9000" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, config.Default().Validate())
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("SPLIT_SEED", "forty-two")
	_, err := config.Load("")
	require.Error(t, err)
}
