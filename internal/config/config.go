package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppPort       string `env:"APP_PORT" envDefault:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	CookieSecure  bool   `env:"COOKIE_SECURE" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	SessionAbsoluteTTL time.Duration `env:"SESSION_ABSOLUTE_TTL" envDefault:"24h"`

	ResetTokenSecret string        `env:"RESET_TOKEN_SECRET"`
	ResetTokenTTL    time.Duration `env:"RESET_TOKEN_TTL" envDefault:"30m"`

	AvatarDir      string `env:"AVATAR_DIR" envDefault:"./data/avatars"`
	AvatarMaxBytes int64  `env:"AVATAR_MAX_BYTES" envDefault:"1048576"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	// Generic OIDC issuer, e.g. a Keycloak realm.
	OIDCName          string `env:"OIDC_NAME" envDefault:"keycloak"`
	OIDCIssuer        string `env:"OIDC_ISSUER"`
	OIDCClientID      string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret  string `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL   string `env:"OIDC_REDIRECT_URL"`
	OIDCPublicAuthURL string `env:"OIDC_PUBLIC_AUTH_URL"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if c.ResetTokenSecret == "" {
		errs = append(errs, errors.New("RESET_TOKEN_SECRET is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.SessionAbsoluteTTL < c.SessionTTL {
		errs = append(errs, errors.New("SESSION_ABSOLUTE_TTL must not be shorter than SESSION_TTL"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func (c Config) OIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != "" && c.OIDCRedirectURL != ""
}
