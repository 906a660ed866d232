package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/registry-crawler/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://gd.pkulaw.com", cfg.Crawler.BaseURL)
	assert.Equal(t, 3, cfg.Crawler.Workers)
	assert.Equal(t, 3, cfg.Crawler.EmptyPageThreshold)
	assert.Equal(t, 500, cfg.Crawler.MaxPages)
	assert.Equal(t, "noop", cfg.Storage.Provider)
	assert.Equal(t, "noop", cfg.Publisher.Provider)
	assert.Equal(t, "noop", cfg.Archive.Provider)
	assert.Equal(t, 30*time.Second, cfg.Crawler.RequestTimeout())
	assert.Equal(t, time.Second, cfg.Crawler.MinDelay())
	assert.Equal(t, 250*time.Millisecond, cfg.HTTP.BackoffInitial())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
crawler:
  workers: 6
  categories: ["XM0701", "XP08"]
storage:
  provider: postgres
  dsn: postgres://crawler@localhost:5432/registry
archive:
  provider: local
  base_dir: /tmp/pages
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Crawler.Workers)
	assert.Equal(t, []string{"XM0701", "XP08"}, cfg.Crawler.Categories)
	assert.Equal(t, "postgres", cfg.Storage.Provider)
	assert.Equal(t, "records", cfg.Storage.Table)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("CRAWLER_CRAWLER_WORKERS", "9")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Crawler.Workers)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Crawler.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Crawler.EmptyPageThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Crawler.MinDelayMs = 5000
	cfg.Crawler.MaxDelayMs = 1000
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Provider = "postgres"
	assert.Error(t, cfg.Validate(), "postgres without dsn")

	cfg = base()
	cfg.Publisher.Provider = "pubsub"
	assert.Error(t, cfg.Validate(), "pubsub without project and topic")

	cfg = base()
	cfg.Archive.Provider = "mystery"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Crawler.Profile = "reckless"
	assert.Error(t, cfg.Validate())
}

func TestProfileOverridesDelays(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Crawler.Profile = "careful"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*time.Second, cfg.Crawler.MinDelay())
	assert.Equal(t, 8*time.Second, cfg.Crawler.MaxDelay())

	cfg.Crawler.Profile = ""
	assert.Equal(t, time.Second, cfg.Crawler.MinDelay())
	assert.Equal(t, 3*time.Second, cfg.Crawler.MaxDelay())
}
