// Package config loads runtime settings from the environment, an optional
// .env file, an optional config file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CADENCE_LOG_LEVEL.
const EnvPrefix = "CADENCE"

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	BackendBaseURL string        `mapstructure:"backend_base_url"`
	BackendCookie  string        `mapstructure:"backend_cookie"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	ListenAddr     string        `mapstructure:"listen_addr"`

	StorageDriver string `mapstructure:"storage_driver"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	SessionID   string `mapstructure:"session_id"`
	WorkerCount int    `mapstructure:"worker_count"`
	QueueSize   int    `mapstructure:"queue_size"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"backend-url": "backend_base_url",
	"listen":      "listen_addr",
	"storage":     "storage_driver",
	"sqlite-path": "sqlite_path",
	"redis-addr":  "redis_addr",
	"log-level":   "log_level",
	"log-file":    "log_file",
	"session":     "session_id",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_base_url", "http://127.0.0.1:8000")
	v.SetDefault("backend_cookie", "session")
	v.SetDefault("http_timeout", "15s")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("storage_driver", DriverSQLite)
	v.SetDefault("sqlite_path", "cadence.db")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("session_id", "cli")
	v.SetDefault("worker_count", 2)
	v.SetDefault("queue_size", 100)
}

// Load resolves the configuration. Precedence, highest first: flags that
// were set, environment, config file, defaults. A .env file in the working
// directory fills in environment variables that are not already set.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BackendBaseURL)
	switch {
	case strings.TrimSpace(c.BackendBaseURL) == "":
		errs = append(errs, errors.New("backend_base_url is required"))
	case err != nil || !u.IsAbs() || u.Host == "":
		errs = append(errs, fmt.Errorf("backend_base_url must be an absolute URL, got %q", c.BackendBaseURL))
	}

	switch c.StorageDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite_path is required for the sqlite driver"))
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required for the redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage_driver %q", c.StorageDriver))
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http_timeout must be positive"))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, errors.New("worker_count must be at least 1"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, errors.New("queue_size must be at least 1"))
	}
	if strings.TrimSpace(c.SessionID) == "" {
		errs = append(errs, errors.New("session_id is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
