// Package config loads the marketplace client settings from the
// environment, optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvAPIURL            = "MARKETPLACE_API_URL"
	EnvStoragePath       = "MARKETPLACE_STORAGE_PATH"
	EnvHTTPAddr          = "MARKETPLACE_HTTP_ADDR"
	EnvHTTPTimeout       = "MARKETPLACE_HTTP_TIMEOUT"
	EnvPhoneRegion       = "MARKETPLACE_PHONE_REGION"
	EnvTransitionPolicy  = "MARKETPLACE_TRANSITION_POLICY"
	EnvKeepStaleIdentity = "MARKETPLACE_KEEP_STALE_IDENTITY"
	EnvOAuthClientID     = "OAUTH_CLIENT_ID"
	EnvOAuthClientSecret = "OAUTH_CLIENT_SECRET"
	EnvOAuthRedirectURL  = "OAUTH_REDIRECT_URL"
)

const (
	DefaultAPIURL      = "http://localhost:8000"
	DefaultStoragePath = "marketplace.db"
	DefaultHTTPAddr    = ":3000"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultPhoneRegion = "ET"
	DefaultPolicy      = "unconstrained"
)

// Config is the resolved client configuration.
type Config struct {
	apiURL            string
	storagePath       string
	httpAddr          string
	httpTimeout       time.Duration
	phoneRegion       string
	transitionPolicy  string
	keepStaleIdentity bool
	oauthClientID     string
	oauthClientSecret string
	oauthRedirectURL  string
}

// Load reads files (default ".env") into the environment without
// overriding variables already set, then builds a Config. Missing files
// are ignored.
func Load(files ...string) *Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() *Config {
	return &Config{
		apiURL:            strings.TrimSuffix(env(EnvAPIURL, DefaultAPIURL), "/"),
		storagePath:       env(EnvStoragePath, DefaultStoragePath),
		httpAddr:          env(EnvHTTPAddr, DefaultHTTPAddr),
		httpTimeout:       duration(EnvHTTPTimeout, DefaultHTTPTimeout),
		phoneRegion:       strings.ToUpper(env(EnvPhoneRegion, DefaultPhoneRegion)),
		transitionPolicy:  env(EnvTransitionPolicy, DefaultPolicy),
		keepStaleIdentity: boolean(EnvKeepStaleIdentity, false),
		oauthClientID:     os.Getenv(EnvOAuthClientID),
		oauthClientSecret: os.Getenv(EnvOAuthClientSecret),
		oauthRedirectURL:  os.Getenv(EnvOAuthRedirectURL),
	}
}

func (c *Config) GetAPIURL() string             { return c.apiURL }
func (c *Config) GetStoragePath() string        { return c.storagePath }
func (c *Config) GetHTTPAddr() string           { return c.httpAddr }
func (c *Config) GetHTTPTimeout() time.Duration { return c.httpTimeout }
func (c *Config) GetPhoneRegion() string        { return c.phoneRegion }
func (c *Config) GetTransitionPolicy() string   { return c.transitionPolicy }
func (c *Config) GetKeepStaleIdentity() bool    { return c.keepStaleIdentity }
func (c *Config) GetOAuthClientID() string      { return c.oauthClientID }
func (c *Config) GetOAuthClientSecret() string  { return c.oauthClientSecret }
func (c *Config) GetOAuthRedirectURL() string   { return c.oauthRedirectURL }

// OAuthEnabled reports whether third-party sign in is configured.
func (c *Config) OAuthEnabled() bool {
	return c.oauthClientID != "" && c.oauthRedirectURL != ""
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// duration accepts Go durations ("15s") or plain seconds ("15").
func duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func boolean(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
