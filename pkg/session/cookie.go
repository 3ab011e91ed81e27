package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	// sessionIDBytes is the number of random bytes for session ID generation.
	sessionIDBytes = 16

	// signingKeyBytes is the length of the HMAC key derived from the secret.
	signingKeyBytes = 32

	cookieIssuer  = "slidetrack"
	cookieKeyInfo = "slidetrack session cookie v1"
)

// CookieSigner signs and verifies session cookie values. The value is an
// HS256 JWT whose jti carries the session ID.
type CookieSigner struct {
	key []byte
}

// NewCookieSigner derives the HMAC key from secret.
func NewCookieSigner(secret string) (*CookieSigner, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	key := make([]byte, signingKeyBytes)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving cookie key: %w", err)
	}
	return &CookieSigner{key: key}, nil
}

// Sign returns the cookie value for session id.
func (c *CookieSigner) Sign(id string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:       id,
		Issuer:   cookieIssuer,
		IssuedAt: jwt.NewNumericDate(now),
	})
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("signing session cookie: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and returns the session ID.
func (c *CookieSigner) Verify(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
	)
	if err != nil {
		return "", fmt.Errorf("parsing session cookie: %w", err)
	}
	if claims.ID == "" {
		return "", errors.New("session cookie has no session id")
	}
	return claims.ID, nil
}

// generateSessionID creates a cryptographically random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
