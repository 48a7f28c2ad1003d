package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateDeviceID returns a fresh identifier for clients that did not present
// one of their own.
func GenerateDeviceID() string {
	return uuid.NewString()
}

// ComposeRefreshToken joins a token id with its secret into the raw value
// handed to the client. The id travels with the token so the server can look
// the record up without hashing every stored candidate.
func ComposeRefreshToken(tokenID, secret string) string {
	return tokenID + "." + secret
}

// SplitRefreshToken separates a presented raw refresh token into its id and
// secret parts.
func SplitRefreshToken(raw string) (tokenID, secret string, err error) {
	idx := strings.IndexByte(raw, '.')
	if idx <= 0 || idx == len(raw)-1 {
		return "", "", fmt.Errorf("malformed refresh token")
	}
	return raw[:idx], raw[idx+1:], nil
}

// saltLength is the number of random bytes in a per-token salt.
const saltLength = 16

// RefreshTokenHasher derives storage hashes for refresh token secrets using
// HMAC-SHA256 keyed by a server-side secret, with a per-token salt mixed into
// the message. Neither the database alone nor the server secret alone is
// enough to reconstruct a presentable token.
type RefreshTokenHasher struct {
	secret []byte
}

// NewRefreshTokenHasher constructs a hasher from the configured server secret.
func NewRefreshTokenHasher(secret string) (*RefreshTokenHasher, error) {
	if secret == "" {
		return nil, fmt.Errorf("refresh token hmac secret is required")
	}
	return &RefreshTokenHasher{secret: []byte(secret)}, nil
}

// NewSalt produces a random per-token salt.
func (h *RefreshTokenHasher) NewSalt() (string, error) {
	buf := make([]byte, saltLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash computes the storage hash for the given secret and salt.
func (h *RefreshTokenHasher) Hash(secret, salt string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(secret))
	mac.Write([]byte(salt))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the presented secret matches the stored hash. The
// comparison is constant time.
func (h *RefreshTokenHasher) Verify(secret, salt, storedHash string) bool {
	computed := h.Hash(secret, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
