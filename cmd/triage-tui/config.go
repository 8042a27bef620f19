package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/feedtriage/triage/internal/socketrpc"
)

// cliConfig holds only TUI-relevant configuration.
type cliConfig struct {
	SocketPath string `mapstructure:"socket-path"`
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	v := viper.New()
	v.SetEnvPrefix("TRIAGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "triage", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
