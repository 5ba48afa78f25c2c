// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any player token that fails verification.
var ErrInvalidToken = errors.New("invalid player token")

// Tokens signs and verifies player tokens: ed25519 JWTs whose "sub" claim is
// the player id.
type Tokens struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration
}

// NewTokens generates a fresh key pair. Tokens issued by a previous process
// will no longer verify. A zero ttl issues tokens without an exp claim.
func NewTokens(ttl time.Duration) (*Tokens, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Tokens{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// LoadTokens reads raw ed25519 keys from disk.
func LoadTokens(privatePath, publicPath string, ttl time.Duration) (*Tokens, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key is %d bytes, want %d", len(privateKeyData), ed25519.PrivateKeySize)
	}
	if len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key is %d bytes, want %d", len(publicKeyData), ed25519.PublicKeySize)
	}
	return &Tokens{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
	}, nil
}

// TTL is the lifetime of issued tokens; zero means they never expire.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for playerID.
func (t *Tokens) Issue(playerID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  playerID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(t.privateKey)
}

// Verify checks the signature and expiry and returns the player id.
func (t *Tokens) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return claims.Subject, nil
}
