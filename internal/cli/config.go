package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// BaseURL is the backend origin the session runs against.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Secret seals the persisted cookie jar at rest.
	Secret string `yaml:"secret" validate:"required"`

	// DatabaseFile is the SQLite session database. One file is one
	// browser-tab-equivalent session.
	DatabaseFile string `yaml:"database_file" validate:"required"`

	// Issuer labels TOTP enrolments initiated from this client.
	Issuer string `yaml:"issuer"`

	Routes struct {
		Base     string `yaml:"base"`
		Login    string `yaml:"login"`
		Register string `yaml:"register"`
		Account  string `yaml:"account"`
		Refresh  string `yaml:"refresh"`
	} `yaml:"routes"`

	Env       string        `yaml:"env"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Timeout   time.Duration `yaml:"timeout"`
}

func defaultConfig() Config {
	cfg := Config{
		BaseURL:      os.Getenv("FORMAUTH_BASE_URL"),
		Secret:       os.Getenv("FORMAUTH_SECRET"),
		DatabaseFile: getEnvOrDefault("FORMAUTH_DATABASE_FILE", "formauth.db"),
		Issuer:       getEnvOrDefault("FORMAUTH_ISSUER", "formauth"),
		Env:          getEnvOrDefault("ENV", "dev"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:    getEnvOrDefault("LOG_FORMAT", "text"),
		Timeout:      getEnvDurationOrDefault("FORMAUTH_TIMEOUT", 10*time.Second),
	}

	cfg.Routes.Base = getEnvOrDefault("FORMAUTH_ROUTE_BASE", "/auth")
	cfg.Routes.Login = getEnvOrDefault("FORMAUTH_ROUTE_LOGIN", "/login")
	cfg.Routes.Register = getEnvOrDefault("FORMAUTH_ROUTE_REGISTER", "/register")
	cfg.Routes.Account = getEnvOrDefault("FORMAUTH_ROUTE_ACCOUNT", "/account")
	cfg.Routes.Refresh = getEnvOrDefault("FORMAUTH_ROUTE_REFRESH", "/refresh")

	return cfg
}

// LoadConfig builds the configuration from environment defaults, overridden
// by the YAML file at path when it exists. ${VAR} references in the file are
// expanded from the environment before decoding, so secrets can stay out of
// the file itself.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = getEnvOrDefault("FORMAUTH_CONFIG", "formauth.yml")
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Environment-only configuration.
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		expanded, err := envsubst.Bytes(raw)
		if err != nil {
			return Config{}, fmt.Errorf("expand config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
