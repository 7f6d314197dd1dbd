package crypto

import (
	"encoding/base64"
	"encoding/binary"
)

// IsLegacyFormat classifies a blob as legacy (version 1) or current
// (version 2) using structural properties alone: no key, no decryption
// attempt. Every blob either format produces classifies correctly.
//
// Foreign or ambiguous input defaults to NOT legacy, so SmartDecrypt takes
// the current path first and surfaces a clear format error instead of
// feeding garbage through the unauthenticated legacy cipher.
func IsLegacyFormat(blob string) bool {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return false
	}

	// Current-format blobs announce themselves with the envelope header.
	if len(raw) >= 8 &&
		string(raw[0:4]) == MagicBytes &&
		binary.LittleEndian.Uint32(raw[4:8]) == FormatVersionCurrent {
		return false
	}

	// Legacy blobs are bare salt+iv+ciphertext with no header; the only
	// structural fingerprint is their block-aligned layout.
	if len(raw) < legacyMinSize {
		return false
	}
	return (len(raw)-legacySaltSize-legacyIVSize)%16 == 0
}
