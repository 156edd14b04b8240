// Package config loads conductor configuration from .conductor/config.yaml
// and CONDUCTOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/randalmurphal/conductor/internal/tracker"
)

const (
	// ConductorDir is the per-project state directory.
	ConductorDir = ".conductor"
	// ConfigFileName inside ConductorDir.
	ConfigFileName = "config.yaml"
	// EnvPrefix for environment overrides (CONDUCTOR_SERVER_ADDR etc.).
	EnvPrefix = "CONDUCTOR"
)

// Config is the full conductor configuration.
type Config struct {
	// StateDir holds entity files, manifests, and the event log.
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`

	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	EventLog EventLogConfig `mapstructure:"event_log" yaml:"event_log"`
	Spawn    SpawnConfig    `mapstructure:"spawn" yaml:"spawn"`
	Tracker  tracker.Config `mapstructure:"tracker" yaml:"tracker"`
}

// ServerConfig configures the HTTP/WebSocket server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig configures slog output.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`
}

// EventLogConfig configures the persistent event log.
type EventLogConfig struct {
	// Dialect is "sqlite" or "postgres".
	Dialect string `mapstructure:"dialect" yaml:"dialect"`
	// DSN is the connection string. Empty with the sqlite dialect
	// means <state_dir>/events.db.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// SpawnConfig configures how agent sessions are launched.
type SpawnConfig struct {
	// Command is the agent executable handed the manifest path.
	Command string `mapstructure:"command" yaml:"command"`
	// Args precede the manifest path argument.
	Args []string `mapstructure:"args" yaml:"args"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StateDir: ConductorDir,
		Server:   ServerConfig{Addr: ":9171"},
		Log:      LogConfig{Level: "info", Format: "text"},
		EventLog: EventLogConfig{Dialect: "sqlite"},
		Spawn:    SpawnConfig{Command: "conductor-agent"},
		Tracker:  tracker.Config{Provider: "auto"},
	}
}

// Load reads configuration from the given file, or from
// .conductor/config.yaml (then ~/.conductor/config.yaml) when path is
// empty. A missing file is fine; defaults plus environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(ConductorDir)
		v.AddConfigPath(filepath.Join("$HOME", ConductorDir))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Only an explicitly named file is required to exist.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides bind even
// without a config file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("event_log.dialect", d.EventLog.Dialect)
	v.SetDefault("event_log.dsn", d.EventLog.DSN)
	v.SetDefault("spawn.command", d.Spawn.Command)
	v.SetDefault("spawn.args", d.Spawn.Args)
	v.SetDefault("tracker.provider", d.Tracker.Provider)
	v.SetDefault("tracker.base_url", d.Tracker.BaseURL)
	v.SetDefault("tracker.token_env_var", d.Tracker.TokenEnvVar)
	v.SetDefault("tracker.include_closed", d.Tracker.IncludeClosed)
	v.SetDefault("tracker.labels", d.Tracker.Labels)
	v.SetDefault("tracker.jira_email", d.Tracker.JiraEmail)
	v.SetDefault("tracker.jira_jql", d.Tracker.JiraJQL)
	v.SetDefault("tracker.jira_projects", d.Tracker.JiraProjects)
}

// Validate checks enum-valued fields.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (debug, info, warn, error)", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (text, json)", c.Log.Format)
	}
	switch c.EventLog.Dialect {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid event log dialect %q (sqlite, postgres)", c.EventLog.Dialect)
	}
	return nil
}

// EventLogDSN resolves the event log connection string, defaulting the
// sqlite dialect to a file in the state directory.
func (c *Config) EventLogDSN() string {
	if c.EventLog.DSN != "" {
		return c.EventLog.DSN
	}
	if c.EventLog.Dialect == "sqlite" {
		return filepath.Join(c.StateDir, "events.db")
	}
	return ""
}

// SlogLevel maps the configured level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
