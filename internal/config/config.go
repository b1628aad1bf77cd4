// Package config loads anchormarks settings from defaults, an optional
// config.yaml in the data directory and ANCHORMARKS_* environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ANCHORMARKS"

type Config struct {
	DataDir   string        `mapstructure:"data_dir"`
	DBPath    string        `mapstructure:"db_path"`
	Listen    string        `mapstructure:"listen"`
	AuthToken string        `mapstructure:"auth_token"`
	APIKeys   []APIKey      `mapstructure:"api_keys"`
	Log       LogConfig     `mapstructure:"log"`
	Favicon   FaviconConfig `mapstructure:"favicon"`
	Import    ImportConfig  `mapstructure:"import"`
}

// APIKey binds a key to the user it acts as. Keys are only read from the
// config file.
type APIKey struct {
	Key  string `mapstructure:"key"`
	User string `mapstructure:"user"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	JSON       bool   `mapstructure:"json"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type FaviconConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Workers int           `mapstructure:"workers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ImportConfig struct {
	TagPrefix string `mapstructure:"tag_prefix"`
}

// DefaultDataDir returns ~/.config/anchormarks.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "anchormarks"), nil
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("db_path", "")
	v.SetDefault("listen", "127.0.0.1:3000")
	v.SetDefault("auth_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.json", false)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("favicon.enabled", true)
	v.SetDefault("favicon.workers", 4)
	v.SetDefault("favicon.timeout", 5*time.Second)
	v.SetDefault("import.tag_prefix", "import-")
}

// Load reads the configuration into a Config. v may already carry bound
// command-line flags; pass nil to use a fresh instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	defaultDataDir, err := DefaultDataDir()
	if err != nil {
		return nil, err
	}
	SetDefaults(v, defaultDataDir)

	// Environment variable overrides
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for _, key := range []string{
		"data_dir", "db_path", "listen", "auth_token",
		"log.level", "log.file", "log.json", "log.max_size_mb", "log.max_backups",
		"favicon.enabled", "favicon.workers", "favicon.timeout",
		"import.tag_prefix",
	} {
		_ = v.BindEnv(key, envKey(key))
	}

	// Config file, read if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(v.GetString("data_dir"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// APIKeyUsers returns the configured keys as key -> user, skipping
// incomplete entries.
func (c *Config) APIKeyUsers() map[string]string {
	users := make(map[string]string, len(c.APIKeys))
	for _, k := range c.APIKeys {
		key, user := strings.TrimSpace(k.Key), strings.TrimSpace(k.User)
		if key == "" || user == "" {
			continue
		}
		users[key] = user
	}
	return users
}

// DatabasePath returns db_path, or anchormarks.db inside the data dir.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "anchormarks.db")
}

func envKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
