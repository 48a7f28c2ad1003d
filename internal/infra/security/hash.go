package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the Argon2id password hasher. Zero fields fall back to
// the package defaults.
type Argon2Params struct {
	Time       uint32
	MemoryKiB  uint32
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

var defaultArgon2Params = Argon2Params{
	Time:       3,
	MemoryKiB:  64 * 1024,
	Threads:    4,
	SaltLength: 16,
	KeyLength:  32,
}

// PasswordHasher produces and verifies Argon2id password hashes. The encoded
// form is "salt:hash" with both components base64-encoded; only the salt is
// carried in the encoding, so the cost parameters must stay stable for
// existing hashes to keep verifying.
type PasswordHasher struct {
	params Argon2Params
}

// NewPasswordHasher constructs a PasswordHasher, filling unset parameters
// from the defaults.
func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	if params.Time == 0 {
		params.Time = defaultArgon2Params.Time
	}
	if params.MemoryKiB == 0 {
		params.MemoryKiB = defaultArgon2Params.MemoryKiB
	}
	if params.Threads == 0 {
		params.Threads = defaultArgon2Params.Threads
	}
	if params.SaltLength == 0 {
		params.SaltLength = defaultArgon2Params.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = defaultArgon2Params.KeyLength
	}
	return &PasswordHasher{params: params}
}

// Hash generates an Argon2id hash for the provided password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLength)
	encodedSalt := base64.StdEncoding.EncodeToString(salt)
	encodedHash := base64.StdEncoding.EncodeToString(hash)

	return fmt.Sprintf("%s:%s", encodedSalt, encodedHash), nil
}

// Verify compares the provided password against a stored Argon2id hash.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return false, fmt.Errorf("invalid password hash format")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}

	storedHash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, uint32(len(storedHash)))

	if subtle.ConstantTimeCompare(computed, storedHash) == 1 {
		return true, nil
	}

	return false, nil
}
