package portal

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the runtime options for the portal server. Values come
// from the defaults below overridden by PORTAL_* environment
// variables. Nesting uses a double underscore, e.g.
// PORTAL_SERVER__ADDRESS, PORTAL_DATABASE__DSN,
// PORTAL_SESSION__COOKIE_NAME.
type Config struct {
	Server struct {
		Address string `koanf:"address"`
	} `koanf:"server"`
	Database struct {
		DSN string `koanf:"dsn"`
	} `koanf:"database"`
	Session struct {
		CookieName string        `koanf:"cookie_name"`
		TTL        time.Duration `koanf:"ttl"`
	} `koanf:"session"`
	Auth struct {
		BcryptCost int `koanf:"bcrypt_cost"`
	} `koanf:"auth"`
	Debug bool `koanf:"debug"`
}

const envPrefix = "PORTAL_"

func defaults() map[string]any {
	return map[string]any{
		"server.address":      ":3000",
		"database.dsn":        "file:portal.db?cache=shared&_pragma=foreign_keys(1)",
		"session.cookie_name": DefaultSessionCookie,
		"session.ttl":         DefaultSessionTTL,
		"auth.bcrypt_cost":    DefaultBcryptCost,
		"debug":               false,
	}
}

// LoadConfig builds the Config from defaults plus environment.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load config defaults")
	}

	// PORTAL_SESSION__COOKIE_NAME -> session.cookie_name
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".",
		)
	}), nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load config from environment")
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to unmarshal config")
	}

	return cfg, cfg.Validate()
}

// Validate checks the loaded values before the server starts.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return ValidationError("server address is required", nil)
	}

	if c.Database.DSN == "" {
		return ValidationError("database dsn is required", nil)
	}

	if c.Session.TTL <= 0 {
		c.Session.TTL = DefaultSessionTTL
	}

	return nil
}
