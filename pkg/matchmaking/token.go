package matchmaking

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// matchTokenTTL bounds how long a minted match token remains valid
// (spec §6 "the token expires shortly after assignment").
const matchTokenTTL = 2 * time.Minute

const tokenKeyID = "landkeeper-matchmaking-1"

// MatchClaims are the validated claims of a match token (spec §4.5
// "mint a match token", spec §6 "optional ?token= query param").
type MatchClaims struct {
	jwt.RegisteredClaims
	AssignmentID string `json:"assignmentId"`
	PlayerID     string `json:"playerId"`
	LandID       string `json:"landId"`
}

// TokenIssuer mints and validates RS256 match tokens, publishing its
// public key via JWKS for the gameserver's websocket upgrade path to
// verify independently (spec §4.5 "JWKS document").
type TokenIssuer struct {
	key *rsa.PrivateKey
}

// NewTokenIssuer generates an ephemeral RSA keypair for signing match
// tokens. The spec does not mandate a key-management approach; an
// in-process ephemeral key is sufficient for a single matchmaking
// deployment and is rotated by process restart.
func NewTokenIssuer() (*TokenIssuer, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("matchmaking: generate signing key: %w", err)
	}
	return &TokenIssuer{key: key}, nil
}

// Mint issues a match token binding a player to an assignment's land.
func (i *TokenIssuer) Mint(assignmentID, playerID, landID string) (string, error) {
	now := time.Now()
	claims := MatchClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(matchTokenTTL)),
		},
		AssignmentID: assignmentID,
		PlayerID:     playerID,
		LandID:       landID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = tokenKeyID

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("matchmaking: sign match token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a match token, returning its claims.
func (i *TokenIssuer) Validate(tokenString string) (*MatchClaims, error) {
	var claims MatchClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return &i.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("matchmaking: match token expired: %w", err)
		}
		return nil, fmt.Errorf("matchmaking: invalid match token: %w", err)
	}
	return &claims, nil
}

// JWKS renders the issuer's public key as a JSON Web Key Set document
// served at /.well-known/jwks.json (spec §4.5).
func (i *TokenIssuer) JWKS() map[string]any {
	pub := i.key.PublicKey
	return map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": tokenKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
}
