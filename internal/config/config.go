package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	mu sync.RWMutex

	Port          int           `mapstructure:"port"`
	DBPath        string        `mapstructure:"db_path"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	ConnTimeout   time.Duration `mapstructure:"conn_timeout"`
	TempDir       string        `mapstructure:"temp_dir"`
}

var Default = Config{
	Port:          9400,
	DBPath:        "terrasync.db",
	TickInterval:  time.Minute,
	RetryAttempts: 3,
	RetryDelay:    2 * time.Second,
	ConnTimeout:   30 * time.Second,
	TempDir:       "",
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".terrasync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("port", Default.Port)
	viper.SetDefault("db_path", Default.DBPath)
	viper.SetDefault("tick_interval", Default.TickInterval)
	viper.SetDefault("retry_attempts", Default.RetryAttempts)
	viper.SetDefault("retry_delay", Default.RetryDelay)
	viper.SetDefault("conn_timeout", Default.ConnTimeout)
	viper.SetDefault("temp_dir", Default.TempDir)

	viper.SetEnvPrefix("TERRASYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Watch reloads tunable settings when the config file changes. Port and
// db_path keep their boot values; changing them needs a restart.
func (c *Config) Watch(onChange func()) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		var next Config
		if err := viper.Unmarshal(&next); err != nil {
			return
		}

		c.apply(next)

		if onChange != nil {
			onChange()
		}
	})
	viper.WatchConfig()
}

func (c *Config) apply(next Config) {
	c.mu.Lock()
	c.TickInterval = next.TickInterval
	c.RetryAttempts = next.RetryAttempts
	c.RetryDelay = next.RetryDelay
	c.ConnTimeout = next.ConnTimeout
	c.TempDir = next.TempDir
	c.mu.Unlock()
}

// The accessors below are the only safe way to read the tunable fields
// once Watch is active; the reload callback writes them under the same
// lock.

func (c *Config) Retry() (attempts int, delay time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RetryAttempts, c.RetryDelay
}

func (c *Config) Tick() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TickInterval
}

func (c *Config) DialTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ConnTimeout
}

func (c *Config) TempPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TempDir
}
