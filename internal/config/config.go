// Package config loads service settings from an optional YAML or TOML file
// and the environment. Environment variables win over file values.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Addr string `yaml:"addr" toml:"addr"`
	Env  string `yaml:"env" toml:"env"`

	Database struct {
		URL          string `yaml:"url" toml:"url"`
		MaxOpenConns int    `yaml:"max_open_conns" toml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns" toml:"max_idle_conns"`
		MaxIdleTime  string `yaml:"max_idle_time" toml:"max_idle_time"`
		Migrate      bool   `yaml:"migrate" toml:"migrate"`
	} `yaml:"database" toml:"database"`

	Auth struct {
		Domain    string `yaml:"domain" toml:"domain"`
		Audience  string `yaml:"audience" toml:"audience"`
		Issuer    string `yaml:"issuer" toml:"issuer"`
		JWKSURL   string `yaml:"jwks_url" toml:"jwks_url"`
		KeySetTTL string `yaml:"jwks_ttl" toml:"jwks_ttl"`
	} `yaml:"auth" toml:"auth"`

	Redis struct {
		URL string `yaml:"url" toml:"url"`
	} `yaml:"redis" toml:"redis"`

	Limiter struct {
		RPS     float64 `yaml:"rps" toml:"rps"`
		Burst   int     `yaml:"burst" toml:"burst"`
		Enabled bool    `yaml:"enabled" toml:"enabled"`
	} `yaml:"limiter" toml:"limiter"`

	CORS struct {
		TrustedOrigins []string `yaml:"trusted_origins" toml:"trusted_origins"`
	} `yaml:"cors" toml:"cors"`

	// TrustedProxies lists the addresses (IP or CIDR) whose
	// X-Forwarded-For and X-Real-IP headers are believed.
	TrustedProxies []string `yaml:"trusted_proxies" toml:"trusted_proxies"`

	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	var c Config
	c.Addr = ":8080"
	c.Env = "development"
	c.Database.MaxOpenConns = 25
	c.Database.MaxIdleConns = 25
	c.Database.MaxIdleTime = "15m"
	c.Database.Migrate = true
	c.Auth.KeySetTTL = "10m"
	c.Limiter.RPS = 10
	c.Limiter.Burst = 20
	c.Limiter.Enabled = true
	c.CORS.TrustedOrigins = []string{"*"}
	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// Load reads path (if non-empty), applies environment overrides and validates.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		if err := decodeFile(path, &c); err != nil {
			return Config{}, err
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	c.deriveAuth()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func decodeFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(b), c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	str("APP_ENV", &c.Env)
	str("DATABASE_URL", &c.Database.URL)
	str("AUTH0_DOMAIN", &c.Auth.Domain)
	str("API_AUDIENCE", &c.Auth.Audience)
	str("AUTH_ISSUER", &c.Auth.Issuer)
	str("AUTH_JWKS_URL", &c.Auth.JWKSURL)
	str("AUTH_JWKS_TTL", &c.Auth.KeySetTTL)
	str("REDIS_URL", &c.Redis.URL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup("DB_MIGRATE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DB_MIGRATE: %w", err))
		}
		c.Database.Migrate = b
	}
	if v, ok := lookup("RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_RPS: %w", err))
		}
		c.Limiter.RPS = f
	}
	if v, ok := lookup("RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_BURST: %w", err))
		}
		c.Limiter.Burst = n
	}
	if v, ok := lookup("RATE_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_ENABLED: %w", err))
		}
		c.Limiter.Enabled = b
	}
	if v, ok := lookup("ALLOW_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		c.CORS.TrustedOrigins = splitList(v)
	}
	if v, ok := lookup("TRUSTED_PROXIES"); ok && strings.TrimSpace(v) != "" {
		c.TrustedProxies = splitList(v)
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
}

// deriveAuth fills issuer and JWKS url from an Auth0-style domain.
func (c *Config) deriveAuth() {
	if c.Auth.Domain == "" {
		return
	}
	domain := strings.TrimSuffix(strings.TrimPrefix(c.Auth.Domain, "https://"), "/")
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "https://" + domain + "/"
	}
	if c.Auth.JWKSURL == "" {
		c.Auth.JWKSURL = "https://" + domain + "/.well-known/jwks.json"
	}
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must be set"))
	}
	if c.Auth.Audience == "" {
		errs = append(errs, errors.New("auth audience must be set (API_AUDIENCE)"))
	}
	if c.Auth.Issuer == "" {
		errs = append(errs, errors.New("auth issuer must be set (AUTH0_DOMAIN or AUTH_ISSUER)"))
	}
	if c.Auth.JWKSURL == "" {
		errs = append(errs, errors.New("auth JWKS url must be set (AUTH0_DOMAIN or AUTH_JWKS_URL)"))
	}
	if _, err := c.KeySetTTL(); err != nil {
		errs = append(errs, fmt.Errorf("auth jwks_ttl: %w", err))
	}
	if _, err := c.MaxIdleTime(); err != nil {
		errs = append(errs, fmt.Errorf("database max_idle_time: %w", err))
	}
	if c.Limiter.Enabled && (c.Limiter.RPS <= 0 || c.Limiter.Burst <= 0) {
		errs = append(errs, errors.New("limiter rps and burst must be positive when enabled"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// KeySetTTL parses the JWKS cache duration; empty means no caching.
func (c Config) KeySetTTL() (time.Duration, error) { return parseDuration(c.Auth.KeySetTTL) }

// MaxIdleTime parses the pool idle timeout; empty means no limit.
func (c Config) MaxIdleTime() (time.Duration, error) { return parseDuration(c.Database.MaxIdleTime) }

func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// TrustedProxyPrefixes parses TrustedProxies; a bare address becomes a
// single-host prefix.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, p := range c.TrustedProxies {
		if strings.Contains(p, "/") {
			pfx, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
			}
			out = append(out, pfx.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Production reports whether the service runs in the production environment.
func (c Config) Production() bool { return c.Env == "production" }
