package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MJE43/montecarlo-pi/internal/engine"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Log      LogConfig
	Engine   EngineConfig
	Defaults DefaultsConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StoreConfig struct {
	Path string
}

type LogConfig struct {
	Level  string
	Format string
}

type EngineConfig struct {
	Generator engine.Kind
	Workers   int
	BatchSize int
	MaxTries  int
}

type DefaultsConfig struct {
	Seed  int64
	Tries int
}

// Load reads defaults, then an optional pi.yaml, then PI_* environment variables.
// A non-empty file must exist.
func Load(file string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("pi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.config/pi")

		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config

	// Server
	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	cfg.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	cfg.Server.RequestTimeout = v.GetDuration("server.request_timeout")

	// Store
	cfg.Store.Path = v.GetString("store.path")

	// Logging
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	// Engine
	cfg.Engine.Generator = engine.Kind(v.GetString("engine.generator"))
	cfg.Engine.Workers = v.GetInt("engine.workers")
	cfg.Engine.BatchSize = v.GetInt("engine.batch_size")
	cfg.Engine.MaxTries = v.GetInt("engine.max_tries")

	// Defaults
	cfg.Defaults.Seed = v.GetInt64("defaults.seed")
	cfg.Defaults.Tries = v.GetInt("defaults.tries")

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.request_timeout", "60s")

	// Store defaults
	v.SetDefault("store.path", "pi.db")

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Engine defaults
	v.SetDefault("engine.generator", string(engine.DefaultKind))
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.batch_size", 1<<16)
	v.SetDefault("engine.max_tries", 1<<30)

	// Run defaults
	v.SetDefault("defaults.seed", 1000)
	v.SetDefault("defaults.tries", 1000)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if _, err := engine.ParseKind(string(cfg.Engine.Generator)); err != nil {
		return fmt.Errorf("invalid engine generator: %w", err)
	}
	if cfg.Engine.Workers < 0 {
		return fmt.Errorf("engine workers must be >= 0, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.BatchSize <= 0 {
		return fmt.Errorf("engine batch size must be positive, got %d", cfg.Engine.BatchSize)
	}
	if cfg.Engine.MaxTries <= 0 {
		return fmt.Errorf("engine max tries must be positive, got %d", cfg.Engine.MaxTries)
	}
	if cfg.Defaults.Tries < 0 {
		return fmt.Errorf("default tries must be >= 0, got %d", cfg.Defaults.Tries)
	}
	return nil
}
