package crypto

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"
)

// Legacy (version 1) blob layout, base64-encoded:
//
//	salt(16) | iv(16) | AES-256-CBC ciphertext (PKCS#7 padded)
//
// The block key is derived per blob with PBKDF2-SHA256 from the configured
// key string and the embedded salt. There is no authentication tag: a wrong
// key is only detected through padding validation, which is a strictly
// weaker guarantee than the current format's GCM tag. The scheme is kept
// exactly as it was written and is never extended or strengthened.
const (
	legacySaltSize   = 16
	legacyIVSize     = 16
	legacyPBKDF2Iter = 10000
	legacyKeyLen     = 32
)

// legacyMinSize: salt + iv + at least one cipher block.
const legacyMinSize = legacySaltSize + legacyIVSize + aes.BlockSize

// DecryptLegacy opens a version-1 blob. No corresponding encrypt function
// exists; the legacy format is read-only and exists solely so records
// written before the format change stay accessible until migrated.
func (c *Cipher) DecryptLegacy(blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	if len(raw) < legacyMinSize || (len(raw)-legacySaltSize-legacyIVSize)%aes.BlockSize != 0 {
		return nil, ErrInvalidFormat
	}

	salt := raw[:legacySaltSize]
	iv := raw[legacySaltSize : legacySaltSize+legacyIVSize]
	ciphertext := raw[legacySaltSize+legacyIVSize:]

	key := pbkdf2.Key([]byte(c.keyHex), salt, legacyPBKDF2Iter, legacyKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext, aes.BlockSize)
}

// pkcs7Unpad strips PKCS#7 padding. Invalid padding is the only signal the
// legacy format gives for a wrong key, so it maps to ErrIntegrity.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrIntegrity
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrIntegrity
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrIntegrity
		}
	}
	return data[:len(data)-n], nil
}
