package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config is the configuration shared by the client shell and the dev server.
type Config struct {
	API       API       `yaml:"api"`
	LogLevel  string    `yaml:"log_level" env:"LOG_LEVEL"`
	UI        UI        `yaml:"ui"`
	DevServer DevServer `yaml:"devserver"`
}

type API struct {
	BaseURL string `yaml:"base_url" env:"LIBRARY_API_URL"`
}

type UI struct {
	ToastDuration         time.Duration `yaml:"toast_duration" env:"TOAST_DURATION"`
	RegisterRedirectDelay time.Duration `yaml:"register_redirect_delay" env:"REGISTER_REDIRECT_DELAY"`
}

type DevServer struct {
	Addr      string        `yaml:"addr" env:"DEVSERVER_ADDR"`
	DBPath    string        `yaml:"db_path" env:"DEVSERVER_DB_PATH"`
	JWTSecret string        `yaml:"jwt_secret" env:"DEVSERVER_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"DEVSERVER_TOKEN_TTL"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		API:      API{BaseURL: "http://localhost:8080/api"},
		LogLevel: "info",
		UI: UI{
			ToastDuration:         3 * time.Second,
			RegisterRedirectDelay: 2 * time.Second,
		},
		DevServer: DevServer{
			Addr:      ":8080",
			DBPath:    "library.db",
			JWTSecret: "library-dev-secret-change-me",
			TokenTTL:  24 * time.Hour,
		},
	}
}

// Load layers defaults, the YAML file at path, the dotenv file at envFile and
// finally the process environment. Missing files are skipped; an empty path
// skips that layer.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
