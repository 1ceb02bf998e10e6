package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "drinks.yaml", `
addr: ":9000"
database:
  url: "sqlite://menu.db"
  migrate: false
auth:
  domain: "coffee.eu.auth0.com"
  audience: "drinks"
  jwks_ttl: "0"
limiter:
  enabled: false
log:
  format: json
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr != ":9000" || c.Database.URL != "sqlite://menu.db" || c.Database.Migrate {
		t.Fatalf("unexpected database/addr: %+v", c)
	}
	if c.Auth.Issuer != "https://coffee.eu.auth0.com/" || c.Auth.JWKSURL != "https://coffee.eu.auth0.com/.well-known/jwks.json" {
		t.Fatalf("derived auth: %+v", c.Auth)
	}
	if ttl, _ := c.KeySetTTL(); ttl != 0 {
		t.Fatalf("ttl: %v", ttl)
	}
	if c.Limiter.Enabled || c.Log.Format != "json" {
		t.Fatalf("limiter/log: %+v %+v", c.Limiter, c.Log)
	}
	// untouched defaults survive
	if c.Database.MaxOpenConns != 25 || c.CORS.TrustedOrigins[0] != "*" {
		t.Fatalf("defaults lost: %+v", c)
	}
}

func TestLoadTOML(t *testing.T) {
	p := writeFile(t, "drinks.toml", `
addr = ":7000"

[auth]
issuer = "https://issuer.example/"
jwks_url = "https://issuer.example/keys"
audience = "drinks"
jwks_ttl = "5m"

[cors]
trusted_origins = ["http://localhost:8100"]
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr != ":7000" || c.Auth.JWKSURL != "https://issuer.example/keys" {
		t.Fatalf("unexpected: %+v", c)
	}
	if ttl, _ := c.KeySetTTL(); ttl != 5*time.Minute {
		t.Fatalf("ttl: %v", ttl)
	}
	if len(c.CORS.TrustedOrigins) != 1 || c.CORS.TrustedOrigins[0] != "http://localhost:8100" {
		t.Fatalf("origins: %v", c.CORS.TrustedOrigins)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	p := writeFile(t, "drinks.ini", "addr=:1")
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for .ini")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, "drinks.yaml", "addr: \":9000\"\nauth:\n  audience: drinks\n  domain: file.auth0.com\n")
	t.Setenv("PORT", "4000")
	t.Setenv("AUTH0_DOMAIN", "env.auth0.com")
	t.Setenv("ALLOW_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("RATE_RPS", "2.5")
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr != ":4000" {
		t.Fatalf("addr: %s", c.Addr)
	}
	if c.Auth.Issuer != "https://env.auth0.com/" {
		t.Fatalf("issuer: %s", c.Auth.Issuer)
	}
	if len(c.CORS.TrustedOrigins) != 2 || c.CORS.TrustedOrigins[1] != "http://b.example" {
		t.Fatalf("origins: %v", c.CORS.TrustedOrigins)
	}
	if c.Limiter.RPS != 2.5 {
		t.Fatalf("rps: %v", c.Limiter.RPS)
	}
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	env := map[string]string{"RATE_BURST": "lots", "DB_MIGRATE": "maybe"}
	c := Default()
	err := c.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"RATE_BURST", "DB_MIGRATE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	err := c.Validate()
	if err == nil {
		t.Fatal("default config without auth should not validate")
	}
	for _, want := range []string{"audience", "issuer", "JWKS"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}

	c.Auth.Audience = "drinks"
	c.Auth.Domain = "coffee.auth0.com"
	c.deriveAuth()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c.Auth.KeySetTTL = "soon"
	c.Log.Format = "xml"
	if err := c.Validate(); err == nil {
		t.Fatal("expected ttl and format errors")
	}
}

func TestTrustedProxies(t *testing.T) {
	c := Default()
	if err := c.applyEnv(func(k string) (string, bool) {
		if k == "TRUSTED_PROXIES" {
			return "10.0.0.0/8, 192.0.2.7", true
		}
		return "", false
	}); err != nil {
		t.Fatal(err)
	}
	prefixes, err := c.TrustedProxyPrefixes()
	if err != nil {
		t.Fatal(err)
	}
	if len(prefixes) != 2 || prefixes[0].String() != "10.0.0.0/8" || prefixes[1].String() != "192.0.2.7/32" {
		t.Fatalf("prefixes: %v", prefixes)
	}

	c.TrustedProxies = []string{"proxy.internal"}
	if _, err := c.TrustedProxyPrefixes(); err == nil {
		t.Fatal("expected error for hostname")
	}
	c.Auth.Audience, c.Auth.Domain = "drinks", "coffee.auth0.com"
	c.deriveAuth()
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "proxy.internal") {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateLogLevel(t *testing.T) {
	c := Default()
	c.Auth.Audience, c.Auth.Domain = "drinks", "coffee.auth0.com"
	c.deriveAuth()
	c.Log.Level = "chatty"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "log level") {
		t.Fatalf("validate: %v", err)
	}
}
