package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig holds the settings of the command line client.
type ClientConfig struct {
	Server            string        `mapstructure:"server"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	NearbyLimit       int           `mapstructure:"nearby_limit"`
	AutocompleteLimit int           `mapstructure:"autocomplete_limit"`
	TokenFile         string        `mapstructure:"token_file"`
	LogFile           string        `mapstructure:"log_file"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

func ClientHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".accessbus"
	}
	return filepath.Join(home, ".accessbus")
}

// LoadClientConfig reads file (or ~/.accessbus/config.yaml when empty) and
// ACCESSBUS_* environment overrides. A missing file is not an error.
func LoadClientConfig(file string) (*ClientConfig, error) {
	v := viper.New()
	home := ClientHome()
	v.SetDefault("server", "http://127.0.0.1:5000")
	v.SetDefault("poll_interval", 30*time.Second)
	v.SetDefault("nearby_limit", DEFAULT_STOPS_LIMIT)
	v.SetDefault("autocomplete_limit", DEFAULT_STOPS_LIMIT)
	v.SetDefault("token_file", filepath.Join(home, "session.json"))
	v.SetDefault("log_file", filepath.Join(home, "client.log"))
	v.SetDefault("timeout", 15*time.Second)

	v.SetEnvPrefix("ACCESSBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.NearbyLimit <= 0 {
		cfg.NearbyLimit = DEFAULT_STOPS_LIMIT
	}
	if cfg.AutocompleteLimit <= 0 {
		cfg.AutocompleteLimit = DEFAULT_STOPS_LIMIT
	}
	return &cfg, nil
}
