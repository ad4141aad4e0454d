package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "BOMBARENA_CONFIG"

const DefaultPath = "config/server.toml"

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Simulation SimulationConfig `toml:"simulation"`
	Database   DatabaseConfig   `toml:"database"`
	Network    NetworkConfig    `toml:"network"`
	Data       DataConfig       `toml:"data"`
	Logging    LoggingConfig    `toml:"logging"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	StartTime int64  // set at boot, not from config
}

type SimulationConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
	// FixedDeltaMs overrides the rules' delta when non-zero.
	FixedDeltaMs     int32  `toml:"fixed_delta_ms"`
	Seed             uint64 `toml:"seed"`
	FullChecksum     bool   `toml:"full_checksum"`
	SnapshotInterval uint32 `toml:"snapshot_interval"` // ticks between autosaves, 0 disables
	RecordDir        string `toml:"record_dir"`        // empty disables recording
}

type DatabaseConfig struct {
	Driver          string        `toml:"driver"` // "postgres" or "sqlite"
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type NetworkConfig struct {
	BindAddress        string        `toml:"bind_address"`
	InQueueSize        int           `toml:"in_queue_size"`
	OutQueueSize       int           `toml:"out_queue_size"`
	MaxCommandsPerTick int           `toml:"max_commands_per_tick"`
	WriteTimeout       time.Duration `toml:"write_timeout"`
	ReadTimeout        time.Duration `toml:"read_timeout"`
}

type DataConfig struct {
	Flavours   string `toml:"flavours"`
	Rules      string `toml:"rules"`
	Scenario   string `toml:"scenario"`
	ScriptsDir string `toml:"scripts_dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Enabled          bool `toml:"enabled"`
	PacketsPerSecond int  `toml:"packets_per_second"`
}

// ResolvePath picks the config file: an explicit flag wins, then the
// environment, then the default.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: database.driver %q", ErrInvalid, c.Database.Driver)
	}
	if c.Simulation.TickRate <= 0 {
		return fmt.Errorf("%w: simulation.tick_rate must be positive", ErrInvalid)
	}
	if c.Simulation.FixedDeltaMs < 0 {
		return fmt.Errorf("%w: simulation.fixed_delta_ms is negative", ErrInvalid)
	}
	if c.Network.MaxCommandsPerTick <= 0 {
		return fmt.Errorf("%w: network.max_commands_per_tick must be positive", ErrInvalid)
	}
	return nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "bombarena",
		},
		Simulation: SimulationConfig{
			TickRate:         16 * time.Millisecond,
			Seed:             1,
			SnapshotInterval: 600,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "bombarena.db",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Network: NetworkConfig{
			BindAddress:        "0.0.0.0:7400",
			InQueueSize:        128,
			OutQueueSize:       256,
			MaxCommandsPerTick: 32,
			WriteTimeout:       10 * time.Second,
			ReadTimeout:        60 * time.Second,
		},
		Data: DataConfig{
			Flavours:   "data/flavours.yaml",
			Rules:      "data/rules.yaml",
			Scenario:   "data/scenario.yaml",
			ScriptsDir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			PacketsPerSecond: 120,
		},
	}
}
