package config

import (
	"fmt"
	"time"
)

// Server is the process configuration, filled by viper from flags,
// EVENTLINE_* environment variables and an optional config file.
type Server struct {
	Addr      string    `mapstructure:"addr"`
	Workspace string    `mapstructure:"workspace"`
	DB        DB        `mapstructure:"db"`
	Auth      Auth      `mapstructure:"auth"`
	S3        S3        `mapstructure:"s3"`
	Log       Log       `mapstructure:"log"`
	Webhooks  []Webhook `mapstructure:"webhooks"`
}

type DB struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Auth struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience"`
	DevLogin    bool          `mapstructure:"dev_login"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	// ShareSecret signs share-link tokens; empty reuses JWTSecret.
	ShareSecret string        `mapstructure:"share_secret"`
}

// ShareKey returns the key share-link tokens are signed with.
func (a Auth) ShareKey() []byte {
	if a.ShareSecret != "" {
		return []byte(a.ShareSecret)
	}
	return []byte(a.JWTSecret)
}

type S3 struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Region    string        `mapstructure:"region"`
	Bucket    string        `mapstructure:"bucket"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	PathStyle bool          `mapstructure:"path_style"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

// Enabled reports whether document storage is configured.
func (s S3) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Webhook struct {
	URL      string `mapstructure:"url"`
	Secret   string `mapstructure:"secret"`
	EventID  string `mapstructure:"event_id"`
	Schedule string `mapstructure:"schedule"`
}

// ServerDefaults lists the keys viper falls back to.
func ServerDefaults() map[string]any {
	return map[string]any{
		"addr":            "127.0.0.1:8080",
		"workspace":       ".",
		"db.driver":       "sqlite",
		"auth.jwt_issuer": "eventline",
		"auth.token_ttl":  "12h",
		"s3.region":       "us-east-1",
		"s3.path_style":   true,
		"s3.url_expiry":   "15m",
		"log.level":       "info",
		"log.format":      "text",
	}
}

// Validate checks values that would only fail at request time otherwise.
func (s *Server) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	switch s.DB.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite or postgres")
	}
	if s.DB.Driver == "postgres" && s.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required for postgres")
	}
	if s.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	for i, h := range s.Webhooks {
		if h.URL == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
	}
	return nil
}
