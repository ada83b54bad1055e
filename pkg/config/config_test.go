package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
node:
  id: node-alpha
  environment: staging
server:
  listenAddress: ":9000"
  authToken: sekrit
resolver:
  url: http://resolver.internal:8000
  requestTimeout: 8s
federation:
  secret: shared-secret
  heartbeatInterval: 30s
  electionInterval: 90s
  leaderPollInterval: 5s
  stalePeerThreshold: 120s
handover:
  mode: drainAndStop
  drainTimeout: 45s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "node-alpha", cfg.Node.ID)
	assert.Equal(t, "staging", cfg.Node.Environment)
	assert.Equal(t, ":9000", cfg.Server.ListenAddress)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 90*time.Second, cfg.ElectionInterval())
	assert.Equal(t, 5*time.Second, cfg.LeaderPollInterval())
	assert.Equal(t, 120*time.Second, cfg.StalePeerThreshold())
	assert.Equal(t, HandoverDrainAndStop, cfg.Handover.Mode)
	assert.Equal(t, 45*time.Second, cfg.DrainTimeout())
	assert.Equal(t, 8*time.Second, cfg.ResolverRequestTimeout())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
node:
  id: node-alpha
resolver:
  url: http://resolver.internal:8000
federation:
  secret: shared-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultListenAddress, cfg.Server.ListenAddress)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval())
	assert.Equal(t, DefaultElectionInterval, cfg.ElectionInterval())
	assert.Equal(t, DefaultLeaderPollInterval, cfg.LeaderPollInterval())
	assert.Equal(t, DefaultStalePeerThreshold, cfg.StalePeerThreshold())
	assert.Equal(t, HandoverZeroDowntime, cfg.Handover.Mode)
	assert.Equal(t, DefaultDrainTimeout, cfg.DrainTimeout())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
node:
  id: file-node
federation:
  secret: file-secret
resolver:
  url: http://file-resolver:8000
`)

	t.Setenv("FLEET_NODE_ID", "env-node")
	t.Setenv("FLEET_ENV", "prod")
	t.Setenv("FLEET_FEDERATION_SECRET", "env-secret")
	t.Setenv("FLEET_RESOLVER_URL", "http://env-resolver:8000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-node", cfg.Node.ID)
	assert.Equal(t, "prod", cfg.Node.Environment)
	assert.Equal(t, "env-secret", cfg.Federation.Secret)
	assert.Equal(t, "http://env-resolver:8000", cfg.Resolver.URL)
}

func TestLoadConfigPathEnv(t *testing.T) {
	path := writeConfig(t, `
node:
  id: node-alpha
federation:
  secret: s
resolver:
  embedded: true
`)
	t.Setenv("FLEET_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "node-alpha", cfg.Node.ID)
	assert.True(t, cfg.Resolver.Embedded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Node:       Node{ID: "node-alpha"},
			Resolver:   Resolver{URL: "http://resolver:8000"},
			Federation: Federation{Secret: "s"},
			Handover:   Handover{Mode: HandoverZeroDowntime},
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing node id", func(t *testing.T) {
		cfg := base()
		cfg.Node.ID = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingNodeID)
	})

	t.Run("missing secret is fatal", func(t *testing.T) {
		cfg := base()
		cfg.Federation.Secret = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingSecret)
	})

	t.Run("bad handover mode", func(t *testing.T) {
		cfg := base()
		cfg.Handover.Mode = "sideways"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidHandover)
	})

	t.Run("no resolver and not embedded", func(t *testing.T) {
		cfg := base()
		cfg.Resolver.URL = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingResolver)
	})

	t.Run("embedded resolver needs no URL", func(t *testing.T) {
		cfg := base()
		cfg.Resolver.URL = ""
		cfg.Resolver.Embedded = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("negative interval", func(t *testing.T) {
		cfg := base()
		cfg.Federation.LeaderPollInterval = "-10s"
		assert.ErrorIs(t, cfg.Validate(), ErrNegativeInterval)
	})
}

func TestDurationFallback(t *testing.T) {
	// "300" is not a Go duration; it degrades to the default instead of
	// zeroing the loop interval.
	cfg := Config{Federation: Federation{StalePeerThreshold: "300"}}
	assert.Equal(t, DefaultStalePeerThreshold, cfg.StalePeerThreshold())
}
