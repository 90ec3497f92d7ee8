package matchmaking

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"landkeeper/pkg/integration"

	"github.com/golang-jwt/jwt/v5"
)

// JWKSValidator validates match tokens from a remote matchmaking
// process by fetching its public key from /.well-known/jwks.json (spec
// §6 "validates signature against the control plane's JWKS"). Used by
// the gameserver process, which does not hold the matchmaking
// process's private signing key.
type JWKSValidator struct {
	jwksURL string
	client  *http.Client

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// NewJWKSValidator builds a validator fetching keys from jwksURL (e.g.
// "<provisioningBaseURL>/.well-known/jwks.json").
func NewJWKSValidator(jwksURL string) *JWKSValidator {
	return &JWKSValidator{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		keys:    make(map[string]*rsa.PublicKey),
	}
}

type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Refresh re-fetches the JWKS document and rebuilds the validator's key
// cache, wrapped in the JWKS circuit breaker and retry policy.
func (v *JWKSValidator) Refresh(ctx context.Context) error {
	var doc jwksDocument

	err := integration.ExecuteJWKSOperation(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
		if err != nil {
			return fmt.Errorf("matchmaking: build jwks request: %w", err)
		}
		resp, err := v.client.Do(req)
		if err != nil {
			return fmt.Errorf("matchmaking: fetch jwks: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("matchmaking: jwks endpoint returned status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&doc)
	})
	if err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := decodeRSAPublicKey(k.N, k.E)
		if err != nil {
			return fmt.Errorf("matchmaking: decode jwks key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()
	return nil
}

func decodeRSAPublicKey(nEnc, eEnc string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nEnc)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eEnc)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// Validate parses and verifies a match token against the cached JWKS
// keys. After any validation failure (for example an unknown kid once the
// issuer rotated) it refreshes the keys once and validates again.
func (v *JWKSValidator) Validate(ctx context.Context, tokenString string) (*MatchClaims, error) {
	claims, err := v.validateWithCache(tokenString)
	if err == nil {
		return claims, nil
	}

	if refreshErr := v.Refresh(ctx); refreshErr != nil {
		return nil, fmt.Errorf("matchmaking: jwks refresh after validation failure: %w", refreshErr)
	}
	return v.validateWithCache(tokenString)
}

func (v *JWKSValidator) validateWithCache(tokenString string) (*MatchClaims, error) {
	var claims MatchClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		v.mu.RLock()
		defer v.mu.RUnlock()
		key, ok := v.keys[kid]
		if !ok {
			return nil, fmt.Errorf("matchmaking: unknown signing key %q", kid)
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, fmt.Errorf("matchmaking: invalid match token: %w", err)
	}
	return &claims, nil
}
