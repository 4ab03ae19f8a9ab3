// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotInitialized is returned when tokens are used before Init.
var ErrNotInitialized = errors.New("auth keys not initialized")

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	mu         sync.RWMutex
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long issued tokens stay valid (0 => never expire).
	tokenTTL time.Duration
)

// Init generates a fresh ed25519 key pair. Tokens issued before a restart stop
// verifying after it.
func Init(ttl time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	publicKey, privateKey = pub, priv
	tokenTTL = ttl
	return nil
}

// TokenTTL returns the lifetime of issued tokens; 0 means they never expire.
func TokenTTL() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return tokenTTL
}

// CreateJWT signs a token whose "sub" is the player's nickname.
func CreateJWT(nickname string) (string, error) {
	mu.RLock()
	defer mu.RUnlock()
	if privateKey == nil {
		return "", ErrNotInitialized
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  nickname,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a JWT string and returns its subject.
func AuthenticateJWT(tokenString string) (string, error) {
	mu.RLock()
	key := publicKey
	mu.RUnlock()
	if key == nil {
		return "", ErrNotInitialized
	}

	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return claims.Subject, nil
}
