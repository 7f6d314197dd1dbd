// Package crypto implements the versioned at-rest encryption protocol for
// temenos records.
//
// Two blob formats coexist on disk. The current format (version 2) is an
// AES-256-GCM envelope carrying a magic tag, format version and a fresh
// random nonce, base64-encoded so blobs are safe to store as text files and
// to carry in request bodies. The legacy format (version 1) is an
// unauthenticated AES-256-CBC encoding that is decrypt-only; nothing in this
// package can produce new version-1 ciphertext.
//
// All read paths go through SmartDecrypt, which classifies a blob by
// structure alone and dispatches to the right implementation, so callers
// never branch on format version.
package crypto

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Blob envelope magic bytes.
	MagicBytes = "TMNS"

	// Format versions carried in the envelope and in image index entries.
	FormatVersionLegacy  = 1
	FormatVersionCurrent = 2

	// NonceSize is the GCM standard nonce size.
	NonceSize = 12

	// HeaderSize: magic(4) + version(4) + nonce(12) = 20 bytes.
	HeaderSize = 4 + 4 + NonceSize
)

var (
	ErrInvalidFormat  = errors.New("invalid blob format: not an encrypted temenos blob")
	ErrInvalidVersion = errors.New("unsupported encryption format version")

	// ErrIntegrity is returned when decryption fails authentication: the
	// key is wrong or the blob has been tampered with or corrupted.
	// Plaintext is never returned alongside this error.
	ErrIntegrity = errors.New("decryption failed: wrong key or corrupted data")
)

// Cipher performs encryption and decryption under one validated key. Two
// independent instances exist in the service: one holding the at-rest key
// and one holding the transport key. A Cipher is safe for concurrent use.
type Cipher struct {
	// keyHex is kept for the legacy path, which derives its block key from
	// the configured key string rather than the decoded bytes.
	keyHex string
	key    []byte
}

// New creates a Cipher from hex key material. The key is validated once
// here; construction fails closed on a missing or malformed key.
func New(key string) (*Cipher, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{keyHex: key, key: raw}, nil
}

// Encrypt seals plaintext in the current format with a fresh random nonce.
// The returned blob is self-contained: magic, version and nonce travel
// inside it, base64-encoded for text safety.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := gocipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	// Envelope: magic + version + nonce + ciphertext
	envelope := make([]byte, HeaderSize+len(ciphertext))
	copy(envelope[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(envelope[4:8], FormatVersionCurrent)
	copy(envelope[8:HeaderSize], nonce)
	copy(envelope[HeaderSize:], ciphertext)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt opens a current-format blob. It fails with ErrIntegrity when the
// key is wrong or the blob is tampered, never returning partial plaintext.
func (c *Cipher) Decrypt(blob string) ([]byte, error) {
	envelope, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	if len(envelope) < HeaderSize {
		return nil, ErrInvalidFormat
	}
	if string(envelope[0:4]) != MagicBytes {
		return nil, ErrInvalidFormat
	}
	if v := binary.LittleEndian.Uint32(envelope[4:8]); v != FormatVersionCurrent {
		return nil, ErrInvalidVersion
	}

	nonce := envelope[8:HeaderSize]
	ciphertext := envelope[HeaderSize:]

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}

	return plaintext, nil
}

// SmartDecrypt is the single read-path entry point: it classifies the blob
// by structure and dispatches to the legacy or current implementation.
// Behavior is identical regardless of which format produced the blob.
func (c *Cipher) SmartDecrypt(blob string) ([]byte, error) {
	if IsLegacyFormat(blob) {
		return c.DecryptLegacy(blob)
	}
	return c.Decrypt(blob)
}
