// Package auth verifies bearer tokens issued by an OAuth identity provider
// and checks the permissions they carry.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"drinksmenu/internal/metrics"
)

// Config describes the identity provider tokens are checked against.
type Config struct {
	Issuer    string
	Audience  string
	JWKSURL   string
	KeySetTTL time.Duration // 0 fetches the key set on every verification
	Client    *http.Client
}

// Claims is the decoded token payload.
type Claims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// HasPermission reports whether code is one of the granted permissions.
func (c *Claims) HasPermission(code string) bool {
	for _, p := range c.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

// Verifier validates RS256 tokens against the issuer's published JWKS.
type Verifier struct {
	cfg  Config
	http *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

var errUnknownKey = errors.New("kid not found in JWKS")

// minRefetch bounds how often an unknown kid can force a key set refresh.
const minRefetch = 30 * time.Second

func NewVerifier(cfg Config) *Verifier {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Verifier{cfg: cfg, http: client, keys: map[string]*rsa.PublicKey{}}
}

// Authorize runs the whole gate for one request: header, token, permission.
func (v *Verifier) Authorize(r *http.Request, permission string) (*Claims, error) {
	token, err := BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	claims, err := v.Verify(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if err := CheckPermission(claims, permission); err != nil {
		return nil, err
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	switch {
	case len(parts) == 0:
		return "", unauthorized("authorization_header_missing", "Authorization header is expected.")
	case !strings.EqualFold(parts[0], "bearer"):
		return "", unauthorized("invalid_header", `Authorization header must start with "Bearer".`)
	case len(parts) == 1:
		return "", unauthorized("invalid_header", "Token not found.")
	case len(parts) > 2:
		return "", unauthorized("invalid_header", "Authorization header must be bearer token.")
	}
	return parts[1], nil
}

// Verify checks signature, expiry, audience and issuer and returns the claims.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		return nil, unauthorized("invalid_header", "Unable to parse authentication token.")
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, unauthorized("invalid_header", "Authorization malformed.")
	}

	key, err := v.publicKey(ctx, kid)
	if errors.Is(err, errUnknownKey) {
		return nil, unauthorized("invalid_header", "Unable to find the appropriate key.")
	}
	if err != nil {
		return nil, &Error{Code: "invalid_header", Description: "Unable to fetch signing keys.", Status: http.StatusUnauthorized, cause: err}
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithIssuer(v.cfg.Issuer),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, &Error{Code: "token_expired", Description: "Token expired.", Status: http.StatusUnauthorized, cause: err}
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return nil, &Error{Code: "invalid_claims", Description: "Incorrect claims. Please, check the audience and issuer.", Status: http.StatusUnauthorized, cause: err}
	default:
		return nil, &Error{Code: "invalid_header", Description: "Unable to parse authentication token.", Status: http.StatusUnauthorized, cause: err}
	}
}

// CheckPermission requires a permissions claim that includes permission.
func CheckPermission(claims *Claims, permission string) error {
	if claims == nil || claims.Permissions == nil {
		return forbidden("invalid_claims", "Permissions not included in JWT.")
	}
	if !claims.HasPermission(permission) {
		return forbidden("unauthorized", "Permission not found.")
	}
	return nil
}

// publicKey returns the RSA key for kid, fetching the key set when the cache
// is empty, stale or disabled, and once more when kid is unknown.
func (v *Verifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	age := time.Since(v.lastFetch)
	fetched := !v.lastFetch.IsZero()
	v.mu.RUnlock()

	if v.cfg.KeySetTTL > 0 && fetched && age < v.cfg.KeySetTTL {
		if ok {
			return key, nil
		}
		if age < minRefetch {
			return nil, errUnknownKey
		}
	}
	if err := v.fetchJWKS(ctx); err != nil {
		return nil, err
	}
	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, errUnknownKey
	}
	return key, nil
}

func (v *Verifier) fetchJWKS(ctx context.Context) error {
	if v.cfg.JWKSURL == "" {
		return errors.New("JWKS url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch JWKS: unexpected status %d", resp.StatusCode)
	}
	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("decode JWKS: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kid == "" || !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	metrics.JWKSFetches.WithLabelValues("ok").Inc()

	v.mu.Lock()
	v.keys = keys
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 {
		return nil, errors.New("invalid RSA exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}
