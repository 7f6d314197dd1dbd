package crypto

import (
	"encoding/hex"
	"errors"
)

// Key material is supplied as a 64-character hex string decoding to a
// 32-byte AES-256 key. Validation happens before any key reaches a cipher;
// a key that fails here never touches crypto code.
const KeyHexLength = 64

var (
	ErrKeyNotConfigured = errors.New("encryption key not configured")
	ErrMalformedKey     = errors.New("encryption key malformed: expected 64 hex characters")
)

// ValidateKey checks that key material has the expected shape. It is a pure
// check with no side effects.
func ValidateKey(key string) error {
	if key == "" {
		return ErrKeyNotConfigured
	}
	if len(key) != KeyHexLength {
		return ErrMalformedKey
	}
	if _, err := hex.DecodeString(key); err != nil {
		return ErrMalformedKey
	}
	return nil
}

// decodeKey returns the raw 32-byte key for a validated hex key string.
func decodeKey(key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return hex.DecodeString(key)
}
