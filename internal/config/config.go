// Package config loads the process-wide runtime configuration: defaults, an
// optional YAML file, and the TRIAGE_-prefixed environment, layered through
// Viper. The file path is supplied by the caller.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultStoreCapacity     = 100_000
	DefaultGreed             = 4
	DefaultBroadcastCapacity = 1024
	DefaultRankAlpha         = 1.0
	DefaultRankBeta          = 0.25
	DefaultTCPAddr           = "127.0.0.1:4000"
	DefaultOTLPAddr          = "127.0.0.1:4317"
	DefaultAPIAddr           = "127.0.0.1:3000"
	defaultSocketDirName     = "triage"
	defaultSocketFileName    = "triage.sock"
	defaultExportFileName    = "triage-export.duckdb"
	defaultDebugLogFileName  = "triage-debug.log"
)

// Config is the resolved runtime configuration for cmd/triaged.
type Config struct {
	StoreCapacity     int     `mapstructure:"store_capacity"`
	DefaultGreed      int     `mapstructure:"default_greed"`
	BroadcastCapacity int     `mapstructure:"broadcast_capacity"`
	RankAlpha         float64 `mapstructure:"rank_alpha"`
	RankBeta          float64 `mapstructure:"rank_beta"`

	TCPEnabled bool   `mapstructure:"tcp-enabled"`
	TCPAddr    string `mapstructure:"tcp-addr"`

	OTLPEnabled bool   `mapstructure:"otlp-enabled"`
	OTLPAddr    string `mapstructure:"otlp-addr"`

	APIEnabled bool   `mapstructure:"api-enabled"`
	APIAddr    string `mapstructure:"api-addr"`

	SocketPath string `mapstructure:"socket-path"`
	ExportPath string `mapstructure:"export-path"`

	Debug bool `mapstructure:"debug"`

	QueryTimeout time.Duration `mapstructure:"query-timeout"`

	ConfigPath string `mapstructure:"-"`
}

// Load builds a Config from defaults, an optional YAML file at configPath
// (or the default location when configPath is empty), and the TRIAGE_
// environment, in that order of increasing precedence.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRIAGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("store_capacity", DefaultStoreCapacity)
	v.SetDefault("default_greed", DefaultGreed)
	v.SetDefault("broadcast_capacity", DefaultBroadcastCapacity)
	v.SetDefault("rank_alpha", DefaultRankAlpha)
	v.SetDefault("rank_beta", DefaultRankBeta)
	v.SetDefault("tcp-enabled", false)
	v.SetDefault("tcp-addr", DefaultTCPAddr)
	v.SetDefault("otlp-enabled", false)
	v.SetDefault("otlp-addr", DefaultOTLPAddr)
	v.SetDefault("api-enabled", false)
	v.SetDefault("api-addr", DefaultAPIAddr)
	v.SetDefault("socket-path", defaultSocketPath())
	v.SetDefault("export-path", defaultExportPath())
	v.SetDefault("debug", false)
	v.SetDefault("query-timeout", 30*time.Second)

	if configPath != "" {
		v.SetConfigFile(expandHome(configPath))
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "triage", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.TCPEnabled {
		if _, _, err := net.SplitHostPort(cfg.TCPAddr); err != nil {
			return fmt.Errorf("config: invalid tcp-addr %q: %w", cfg.TCPAddr, err)
		}
	}
	if cfg.OTLPEnabled {
		if _, _, err := net.SplitHostPort(cfg.OTLPAddr); err != nil {
			return fmt.Errorf("config: invalid otlp-addr %q: %w", cfg.OTLPAddr, err)
		}
	}
	if cfg.APIEnabled {
		if _, _, err := net.SplitHostPort(cfg.APIAddr); err != nil {
			return fmt.Errorf("config: invalid api-addr %q: %w", cfg.APIAddr, err)
		}
	}
	if cfg.StoreCapacity <= 0 {
		return fmt.Errorf("config: store_capacity must be positive, got %d", cfg.StoreCapacity)
	}
	if cfg.DefaultGreed < 0 || cfg.DefaultGreed > 10 {
		return fmt.Errorf("config: default_greed must be in [0,10], got %d", cfg.DefaultGreed)
	}
	return nil
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, defaultSocketDirName, defaultSocketFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), defaultSocketFileName)
	}
	return filepath.Join(home, ".local", "state", defaultSocketDirName, defaultSocketFileName)
}

func defaultExportPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), defaultExportFileName)
	}
	return filepath.Join(home, ".local", "state", defaultSocketDirName, defaultExportFileName)
}

// DebugLogPath returns the fixed path the debug flag writes to, grounded on
// original_source's --debug flag.
func DebugLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), defaultDebugLogFileName)
	}
	return filepath.Join(home, ".local", "state", defaultSocketDirName, defaultDebugLogFileName)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
