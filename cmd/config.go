package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/ghyeongl/pendingfs/storage/s3"
)

// Provider types accepted by --provider.
const (
	ProviderLocal  = "local"
	ProviderMemory = "memory"
	ProviderS3     = "s3"
)

const envPrefix = "PENDINGFS"

// Config is the effective configuration after layering defaults, the config
// file, PENDINGFS_* environment variables and flags (later wins).
type Config struct {
	Provider     string        `mapstructure:"provider" yaml:"provider"`
	Root         string        `mapstructure:"root" yaml:"root,omitempty"`
	TrashDir     string        `mapstructure:"trash_dir" yaml:"trash_dir,omitempty"`
	Ignore       []string      `mapstructure:"ignore" yaml:"ignore,omitempty"`
	ShowHidden   bool          `mapstructure:"show_hidden" yaml:"show_hidden"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit"`
	Retries      uint64        `mapstructure:"retries" yaml:"retries"`
	RetryBase    time.Duration `mapstructure:"retry_base" yaml:"retry_base"`
	MetricsAddr  string        `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty"`
	Log          LogConfig     `mapstructure:"log" yaml:"log"`
	S3           s3.Config     `mapstructure:"s3" yaml:"s3"`
}

// LogConfig selects the console level and the rotating log directory.
type LogConfig struct {
	Dir   string `mapstructure:"dir" yaml:"dir,omitempty"`
	Level string `mapstructure:"level" yaml:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderLocal)
	v.SetDefault("root", ".")
	v.SetDefault("trash_dir", "")
	v.SetDefault("ignore", []string{})
	v.SetDefault("show_hidden", false)
	v.SetDefault("cache_ttl", 5*time.Second)
	v.SetDefault("history_limit", 100)
	v.SetDefault("retries", 0)
	v.SetDefault("retry_base", 100*time.Millisecond)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.concurrency", s3.DefaultConcurrency)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// readConfigFile loads path, or ~/.pendingfs/config.yaml when path is empty.
// A missing default file is not an error.
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", expanded, err)
		}
		return nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(filepath.Join(home, ".pendingfs"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadConfig decodes v into a Config, expanding ~ in path settings.
func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	var err error
	if cfg.Root, err = homedir.Expand(cfg.Root); err != nil {
		return nil, fmt.Errorf("expand root: %w", err)
	}
	if cfg.Log.Dir, err = homedir.Expand(cfg.Log.Dir); err != nil {
		return nil, fmt.Errorf("expand log dir: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.Root == "" {
			return fmt.Errorf("provider %q needs --root", c.Provider)
		}
	case ProviderMemory:
	case ProviderS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("provider %q needs --bucket", c.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q (want %s, %s or %s)", c.Provider, ProviderLocal, ProviderMemory, ProviderS3)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative")
	}
	return nil
}
