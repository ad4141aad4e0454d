package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[simulation]
tick_rate = "33ms"
seed = 99
full_checksum = true

[database]
driver = "postgres"
dsn = "postgres://arena@localhost/arena"

[logging]
format = "json"
`))
	require.NoError(t, err)

	assert.Equal(t, 33*time.Millisecond, cfg.Simulation.TickRate)
	assert.Equal(t, uint64(99), cfg.Simulation.Seed)
	assert.True(t, cfg.Simulation.FullChecksum)
	assert.Equal(t, uint32(600), cfg.Simulation.SnapshotInterval)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "data/rules.yaml", cfg.Data.Rules)
}

func TestParseRejectsInvalid(t *testing.T) {
	for name, raw := range map[string]string{
		"driver":   "[database]\ndriver = \"mysql\"\n",
		"tick":     "[simulation]\ntick_rate = \"0s\"\n",
		"delta":    "[simulation]\nfixed_delta_ms = -1\n",
		"commands": "[network]\nmax_commands_per_tick = 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Parse([]byte("[server\nname="))
	assert.Error(t, err)
}

func TestLoadSetsStartTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nname = \"test\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Server.Name)
	assert.NotZero(t, cfg.Server.StartTime)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvPath, "")
	assert.Equal(t, DefaultPath, ResolvePath(""))

	t.Setenv(EnvPath, "/etc/arena.toml")
	assert.Equal(t, "/etc/arena.toml", ResolvePath(""))
	assert.Equal(t, "flag.toml", ResolvePath("flag.toml"))
}
