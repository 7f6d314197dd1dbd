package crypto

import (
	"bytes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"testing"

	"crypto/aes"

	"golang.org/x/crypto/pbkdf2"
)

// legacyEncrypt mirrors the retired version-1 writer so fixtures match the
// on-disk legacy layout exactly. It exists only for tests; the production
// code path is decrypt-only.
func legacyEncrypt(t *testing.T, keyHex string, plaintext []byte) string {
	t.Helper()

	salt := make([]byte, legacySaltSize)
	iv := make([]byte, legacyIVSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		t.Fatalf("generate iv: %v", err)
	}

	key := pbkdf2.Key([]byte(keyHex), salt, legacyPBKDF2Iter, legacyKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}

	// PKCS#7 pad
	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padLen)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}

	ciphertext := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	raw := make([]byte, 0, legacySaltSize+legacyIVSize+len(ciphertext))
	raw = append(raw, salt...)
	raw = append(raw, iv...)
	raw = append(raw, ciphertext...)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestDecryptLegacyRoundTrip(t *testing.T) {
	c, _ := New(testKey)
	plaintext := []byte(`{"id":"old-1","title":"written before the format change"}`)

	blob := legacyEncrypt(t, testKey, plaintext)

	decrypted, err := c.DecryptLegacy(blob)
	if err != nil {
		t.Fatalf("DecryptLegacy failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Error("decrypted data doesn't match original")
	}
}

func TestLegacyBlobSniffsAsLegacy(t *testing.T) {
	for _, plaintext := range []string{"", "short", "a legacy record body long enough to span several cipher blocks"} {
		blob := legacyEncrypt(t, testKey, []byte(plaintext))
		if !IsLegacyFormat(blob) {
			t.Errorf("legacy blob not classified as legacy (plaintext %q)", plaintext)
		}
	}
}

func TestDecryptLegacyWrongKey(t *testing.T) {
	other, _ := New(wrongKey)
	plaintext := []byte("legacy secret")

	blob := legacyEncrypt(t, testKey, plaintext)

	// The legacy format has no authentication tag; padding validation is
	// the only wrong-key signal, so either we get ErrIntegrity or, in the
	// rare case random output forms valid padding, garbage that must not
	// equal the original plaintext.
	decrypted, err := other.DecryptLegacy(blob)
	if err == nil && bytes.Equal(decrypted, plaintext) {
		t.Error("wrong key must never yield the original plaintext")
	}
	if err != nil && err != ErrIntegrity {
		t.Errorf("expected ErrIntegrity, got: %v", err)
	}
}

func TestDecryptLegacyMalformed(t *testing.T) {
	c, _ := New(testKey)

	_, err := c.DecryptLegacy("not base64 at all")
	if err != ErrInvalidFormat {
		t.Errorf("expected ErrInvalidFormat for non-base64, got: %v", err)
	}

	// Below minimum size
	_, err = c.DecryptLegacy(base64.StdEncoding.EncodeToString(make([]byte, legacyMinSize-1)))
	if err != ErrInvalidFormat {
		t.Errorf("expected ErrInvalidFormat for short blob, got: %v", err)
	}

	// Not block aligned
	_, err = c.DecryptLegacy(base64.StdEncoding.EncodeToString(make([]byte, legacyMinSize+1)))
	if err != ErrInvalidFormat {
		t.Errorf("expected ErrInvalidFormat for unaligned blob, got: %v", err)
	}
}

func TestSmartDecryptTransparency(t *testing.T) {
	c, _ := New(testKey)
	plaintext := []byte("the caller cannot tell which path decrypted this")

	legacyBlob := legacyEncrypt(t, testKey, plaintext)
	currentBlob, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	for name, blob := range map[string]string{"legacy": legacyBlob, "current": currentBlob} {
		got, err := c.SmartDecrypt(blob)
		if err != nil {
			t.Fatalf("SmartDecrypt(%s) failed: %v", name, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("SmartDecrypt(%s) returned wrong plaintext", name)
		}
	}
}
