package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type RowstoreConfig struct {
	Storage struct {
		Root            string        `mapstructure:"root"`
		DefaultDatabase string        `mapstructure:"default_database"`
		TreeOrder       int           `mapstructure:"tree_order"`
		CachePages      int           `mapstructure:"cache_pages"`
		LockTimeout     time.Duration `mapstructure:"lock_timeout"`
		NoSync          bool          `mapstructure:"no_sync"`
	} `mapstructure:"storage"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.root", "DATABASES")
	v.SetDefault("storage.default_database", "Basesita")
	v.SetDefault("storage.tree_order", 10)
	v.SetDefault("storage.cache_pages", 128)
	v.SetDefault("storage.lock_timeout", time.Second)
	v.SetDefault("storage.no_sync", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ROWSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads a yaml file; an empty path uses defaults plus ROWSTORE_*
// environment overrides only.
func LoadConfig(path string) (*RowstoreConfig, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg RowstoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Storage.TreeOrder < 2 {
		return nil, fmt.Errorf("config: storage.tree_order must be >= 2, got %d", cfg.Storage.TreeOrder)
	}
	return &cfg, nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *RowstoreConfig {
	var cfg RowstoreConfig
	if err := newViper().Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}
