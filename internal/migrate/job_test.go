package migrate

import (
	"bytes"
	"context"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/internal/store"
	"github.com/deshpanderitwik/temenos-sub000/pkg/crypto"
)

const testKey = "6b1f0d2a9c4e8b7d6f3a1c5e9b8d7f2a4c6e8b0d2f4a6c8e0b2d4f6a8c0e2b4d"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// legacyEncrypt reproduces the retired version-1 writer (PBKDF2-SHA256 key
// derivation, AES-256-CBC, PKCS#7) so tests can seed on-disk fixtures in
// the legacy layout.
func legacyEncrypt(t *testing.T, keyHex string, plaintext []byte) string {
	t.Helper()

	salt := make([]byte, 16)
	iv := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		t.Fatalf("generate iv: %v", err)
	}

	key := pbkdf2.Key([]byte(keyHex), salt, 10000, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}

	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padLen)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}

	ciphertext := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	raw := append(append(salt, iv...), ciphertext...)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestRunDir(t *testing.T) {
	cipher, err := crypto.New(testKey)
	if err != nil {
		t.Fatalf("crypto.New failed: %v", err)
	}
	dir := t.TempDir()
	ctx := context.Background()

	plaintexts := map[string][]byte{
		"legacy-1": []byte(`{"id":"legacy-1","title":"one"}`),
		"legacy-2": []byte(`{"id":"legacy-2","title":"two"}`),
		"legacy-3": []byte(`{"id":"legacy-3","title":"three"}`),
	}
	for id, plaintext := range plaintexts {
		blob := legacyEncrypt(t, testKey, plaintext)
		if err := os.WriteFile(filepath.Join(dir, id+store.BlobExt), []byte(blob), 0o600); err != nil {
			t.Fatalf("seed legacy blob: %v", err)
		}
	}

	// One record already in the current format
	currentBlob, err := cipher.Encrypt([]byte(`{"id":"current-1"}`))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "current-1"+store.BlobExt), []byte(currentBlob), 0o600); err != nil {
		t.Fatalf("seed current blob: %v", err)
	}

	// One foreign file that is neither format: sniffed as not-legacy and
	// therefore skipped, never fed through the legacy cipher
	if err := os.WriteFile(filepath.Join(dir, "foreign"+store.BlobExt), []byte("hello"), 0o600); err != nil {
		t.Fatalf("seed foreign file: %v", err)
	}

	job := NewJob(cipher, testLogger())

	result, err := job.RunDir(ctx, domain.ClassNarratives, dir)
	if err != nil {
		t.Fatalf("RunDir failed: %v", err)
	}
	if result.TotalRecords != 5 {
		t.Errorf("TotalRecords = %d, want 5", result.TotalRecords)
	}
	if result.MigratedCount != 3 {
		t.Errorf("MigratedCount = %d, want 3", result.MigratedCount)
	}
	if result.SkippedCount != 2 {
		t.Errorf("SkippedCount = %d, want 2", result.SkippedCount)
	}
	if result.ErrorCount != 0 {
		t.Errorf("ErrorCount = %d, want 0 (errors: %v)", result.ErrorCount, result.Errors)
	}

	// Every migrated record is now decryptable via the current path
	// directly, to the same plaintext as before migration
	for id, want := range plaintexts {
		data, err := os.ReadFile(filepath.Join(dir, id+store.BlobExt))
		if err != nil {
			t.Fatalf("read migrated blob: %v", err)
		}
		if crypto.IsLegacyFormat(string(data)) {
			t.Errorf("record %s still in legacy format after migration", id)
		}
		got, err := cipher.Decrypt(string(data))
		if err != nil {
			t.Errorf("record %s not decryptable via current path: %v", id, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("record %s plaintext changed during migration", id)
		}
	}

	// Idempotence: a second run migrates nothing
	again, err := job.RunDir(ctx, domain.ClassNarratives, dir)
	if err != nil {
		t.Fatalf("second RunDir failed: %v", err)
	}
	if again.MigratedCount != 0 {
		t.Errorf("second run MigratedCount = %d, want 0", again.MigratedCount)
	}
	if again.SkippedCount != 5 {
		t.Errorf("second run SkippedCount = %d, want 5", again.SkippedCount)
	}
	if again.ErrorCount != 0 {
		t.Errorf("second run ErrorCount = %d, want 0", again.ErrorCount)
	}
}

func TestStatusDir(t *testing.T) {
	cipher, _ := crypto.New(testKey)
	dir := t.TempDir()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		var blob string
		if i == 0 {
			blob, _ = cipher.Encrypt([]byte("current"))
		} else {
			blob = legacyEncrypt(t, testKey, []byte("legacy"))
		}
		if err := os.WriteFile(filepath.Join(dir, id+store.BlobExt), []byte(blob), 0o600); err != nil {
			t.Fatalf("seed blob: %v", err)
		}
	}

	job := NewJob(cipher, testLogger())
	status, err := job.StatusDir(ctx, domain.ClassNarratives, dir)
	if err != nil {
		t.Fatalf("StatusDir failed: %v", err)
	}

	if status.TotalRecords != 3 || status.MigratedRecords != 1 || status.LegacyRecords != 2 {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.MigrationComplete {
		t.Error("migration should not be complete with legacy records present")
	}

	if _, err := job.RunDir(ctx, domain.ClassNarratives, dir); err != nil {
		t.Fatalf("RunDir failed: %v", err)
	}

	status, err = job.StatusDir(ctx, domain.ClassNarratives, dir)
	if err != nil {
		t.Fatalf("StatusDir failed: %v", err)
	}
	if !status.MigrationComplete || status.MigrationProgressPercent != 100 {
		t.Errorf("migration should be complete: %+v", status)
	}
}

func TestRunImages(t *testing.T) {
	cipher, _ := crypto.New(testKey)
	dataRoot := t.TempDir()
	ctx := context.Background()

	images, err := store.NewImages(dataRoot, cipher, testLogger())
	if err != nil {
		t.Fatalf("NewImages failed: %v", err)
	}
	imagesDir := filepath.Join(dataRoot, string(domain.ClassImages))

	imageBytes := map[string][]byte{
		"img-legacy-1": []byte("fake png bytes one"),
		"img-legacy-2": []byte("fake png bytes two"),
	}

	now := time.Now()
	index := []domain.ImageMeta{}

	// Two legacy blobs: payload is base64 image bytes, legacy-encrypted
	for id, data := range imageBytes {
		payload := base64.StdEncoding.EncodeToString(data)
		blob := legacyEncrypt(t, testKey, []byte(payload))
		if err := os.WriteFile(filepath.Join(imagesDir, id+store.BlobExt), []byte(blob), 0o600); err != nil {
			t.Fatalf("seed legacy image blob: %v", err)
		}
		index = append(index, domain.ImageMeta{
			ID: id, Title: id, Filename: id + ".png", MimeType: "image/png",
			Size: int64(len(data)), Created: now, LastModified: now,
			EncryptionVersion: crypto.FormatVersionLegacy,
		})
	}

	// One blob already current
	currentPayload := base64.StdEncoding.EncodeToString([]byte("already upgraded"))
	currentBlob, _ := cipher.Encrypt([]byte(currentPayload))
	if err := os.WriteFile(filepath.Join(imagesDir, "img-current"+store.BlobExt), []byte(currentBlob), 0o600); err != nil {
		t.Fatalf("seed current image blob: %v", err)
	}
	index = append(index, domain.ImageMeta{
		ID: "img-current", Title: "current", Filename: "c.png", MimeType: "image/png",
		Created: now, LastModified: now,
		EncryptionVersion: crypto.FormatVersionCurrent,
	})

	// One index entry whose blob is gone: errors, without aborting the run
	index = append(index, domain.ImageMeta{
		ID: "img-missing", Title: "missing", Filename: "m.png", MimeType: "image/png",
		Created: now, LastModified: now,
		EncryptionVersion: crypto.FormatVersionLegacy,
	})

	indexData, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		t.Fatalf("marshal index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(imagesDir, "index.json"), indexData, 0o600); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	job := NewJob(cipher, testLogger())

	result, err := job.RunImages(ctx, images)
	if err != nil {
		t.Fatalf("RunImages failed: %v", err)
	}
	if result.TotalRecords != 4 {
		t.Errorf("TotalRecords = %d, want 4", result.TotalRecords)
	}
	if result.MigratedCount != 2 {
		t.Errorf("MigratedCount = %d, want 2", result.MigratedCount)
	}
	if result.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", result.SkippedCount)
	}
	if result.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1 (errors: %v)", result.ErrorCount, result.Errors)
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error message, got %v", result.Errors)
	}

	// Migrated blobs read back through the store, with index flags flipped
	for id, want := range imageBytes {
		meta, data, err := images.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s) after migration failed: %v", id, err)
		}
		if !bytes.Equal(data, want) {
			t.Errorf("image %s bytes changed during migration", id)
		}
		if meta.EncryptionVersion != crypto.FormatVersionCurrent {
			t.Errorf("image %s version flag = %d, want %d", id, meta.EncryptionVersion, crypto.FormatVersionCurrent)
		}
	}

	// Idempotence: second run migrates nothing new and reports no errors
	// for the records already migrated
	again, err := job.RunImages(ctx, images)
	if err != nil {
		t.Fatalf("second RunImages failed: %v", err)
	}
	if again.MigratedCount != 0 {
		t.Errorf("second run MigratedCount = %d, want 0", again.MigratedCount)
	}
	if again.SkippedCount != 3 {
		t.Errorf("second run SkippedCount = %d, want 3", again.SkippedCount)
	}

	// Status reflects the one unmigratable record
	status, err := job.StatusImages(ctx, images)
	if err != nil {
		t.Fatalf("StatusImages failed: %v", err)
	}
	if status.TotalRecords != 4 || status.LegacyRecords != 1 {
		t.Errorf("unexpected status: %+v", status)
	}
}
