package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bond-reversion-lab/internal/config"
	"bond-reversion-lab/internal/params"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("", true)
	require.NoError(t, err)
	return cfg
}

func TestOpenStores_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)

	s, err := OpenStores(ctx, cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.Bonds)
	assert.NotNil(t, s.Candles)
	assert.NotNil(t, s.Orders)
	assert.NotNil(t, s.Targets)
	assert.NotNil(t, s.Trades)
	assert.Nil(t, s.Pool)
	assert.Empty(t, s.Health())

	account, err := params.LoadAccountID(ctx, s.Params)
	require.NoError(t, err)
	assert.Equal(t, PaperAccountID, account)

	p, err := params.LoadStrategyParameters(ctx, s.Params)
	require.NoError(t, err)
	assert.Equal(t, 4, p.AnalysisPeriodMonths)

	assert.NotNil(t, s.CandleProvider(nil))
	assert.NotNil(t, s.BondProvider())
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.Backend = "sqlite"
	_, err := OpenStores(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = memoryConfig(t)
	cfg.Storage.CandleBackend = "parquet"
	_, err = OpenStores(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestOpenStores_RedisUnavailable(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	s, err := OpenStores(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Nil(t, s.Redis)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_addr: \":9191\"\n"), 0o600))

	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvOnly, "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.Server.HTTPAddr)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv(EnvOnly, "")

	_, err := LoadConfig()
	assert.Error(t, err)
}
