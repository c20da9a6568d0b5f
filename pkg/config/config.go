package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CHOWSPACE_BACKEND_URL.
const EnvPrefix = "CHOWSPACE"

// Config holds application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Session SessionConfig `mapstructure:"session"`
	Menu    MenuConfig    `mapstructure:"menu"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Domain       string        `mapstructure:"domain"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BackendConfig points at the order API.
type BackendConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

// SessionConfig controls shopper session expiry.
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MenuConfig locates the vendor menu; an empty path serves the built-in menu.
type MenuConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// Load reads configuration from an optional YAML file and the environment.
// path wins over CHOWSPACE_CONFIG; with neither, only defaults and env apply.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.domain", "")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("backend.url", "http://localhost:2006")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.rate_per_second", 10.0)
	v.SetDefault("backend.max_retries", 3)
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("menu.path", "")
	v.SetDefault("log.verbose", false)

	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	}
	if c.Backend.MaxRetries < 0 {
		errs = append(errs, errors.New("backend.max_retries must not be negative"))
	}
	if c.Session.TTL < 0 || c.Session.SweepInterval < 0 {
		errs = append(errs, errors.New("session durations must not be negative"))
	}
	return errors.Join(errs...)
}

// Address is the listen address for the plain HTTP server. PORT, set by most hosting platforms, wins.
func (c ServerConfig) Address() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return fmt.Sprintf(":%d", c.Port)
}
