// Package authtest runs an in-process identity provider for tests: it
// publishes a JWKS document over httptest and mints RS256 tokens.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"drinksmenu/internal/auth"
)

const (
	Audience = "drinks"
	KID      = "test-key-1"
)

// Issuer is a fake identity provider.
type Issuer struct {
	Server *httptest.Server
	Key    *rsa.PrivateKey

	fetches atomic.Int64
}

// NewIssuer starts the JWKS server; it is closed when the test ends.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	iss := &Issuer{Key: key}
	iss.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		iss.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": KID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	t.Cleanup(iss.Server.Close)
	return iss
}

// URL is the issuer identifier (with trailing slash, as Auth0 issues it).
func (i *Issuer) URL() string { return i.Server.URL + "/" }

// JWKSURL is where the key set is published.
func (i *Issuer) JWKSURL() string { return i.Server.URL + "/.well-known/jwks.json" }

// Fetches reports how many times the key set was downloaded.
func (i *Issuer) Fetches() int64 { return i.fetches.Load() }

// Config returns verifier settings trusting this issuer.
func (i *Issuer) Config() auth.Config {
	return auth.Config{Issuer: i.URL(), Audience: Audience, JWKSURL: i.JWKSURL(), Client: i.Server.Client()}
}

// Claims returns valid claims for this issuer granting perms.
// A nil perms leaves the permissions claim out entirely.
func (i *Issuer) Claims(perms []string) *auth.Claims {
	now := time.Now()
	return &auth.Claims{
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.URL(),
			Subject:   "auth0|barista",
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

// Sign signs claims with the issuer key under kid ("" omits the kid header).
func (i *Issuer) Sign(t testing.TB, claims jwt.Claims, kid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(i.Key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// Token mints a valid token granting perms.
func (i *Issuer) Token(t testing.TB, perms ...string) string {
	t.Helper()
	if perms == nil {
		perms = []string{}
	}
	return i.Sign(t, i.Claims(perms), KID)
}

// ExpiredToken mints a token that expired an hour ago.
func (i *Issuer) ExpiredToken(t testing.TB, perms ...string) string {
	t.Helper()
	c := i.Claims(append([]string{}, perms...))
	c.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	return i.Sign(t, c, KID)
}
