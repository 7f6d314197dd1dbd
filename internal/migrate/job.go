// Package migrate upgrades legacy-format ciphertext to the current format
// in place. The job is a single sequential pass over one entity class; it
// never aborts the batch on a single record's failure and is safe to re-run
// (an already-migrated record is skipped, so a second run migrates nothing).
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/internal/store"
	"github.com/deshpanderitwik/temenos-sub000/pkg/crypto"
)

// maxErrorMessages bounds the diagnostic error list in a Result.
const maxErrorMessages = 50

// Result reports one migration run.
type Result struct {
	Class         string   `json:"class"`
	TotalRecords  int      `json:"totalRecords"`
	MigratedCount int      `json:"migratedCount"`
	SkippedCount  int      `json:"skippedCount"`
	ErrorCount    int      `json:"errorCount"`
	Errors        []string `json:"errors"`
}

func (r *Result) recordError(id string, err error) {
	r.ErrorCount++
	if len(r.Errors) < maxErrorMessages {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", id, err))
	}
}

// Status reports how far a class's migration has progressed, without
// modifying anything.
type Status struct {
	TotalRecords             int     `json:"totalRecords"`
	MigratedRecords          int     `json:"migratedRecords"`
	LegacyRecords            int     `json:"legacyRecords"`
	MigrationComplete        bool    `json:"migrationComplete"`
	MigrationProgressPercent float64 `json:"migrationProgressPercent"`
}

func statusFrom(total, legacy int) *Status {
	st := &Status{
		TotalRecords:    total,
		MigratedRecords: total - legacy,
		LegacyRecords:   legacy,
	}
	st.MigrationComplete = legacy == 0
	if total == 0 {
		st.MigrationProgressPercent = 100
	} else {
		st.MigrationProgressPercent = float64(st.MigratedRecords) / float64(total) * 100
	}
	return st
}

// Job re-encrypts legacy records under the at-rest key. Must not be run
// concurrently with itself over the same class.
type Job struct {
	cipher *crypto.Cipher
	logger *slog.Logger
}

// NewJob creates a migration job.
func NewJob(cipher *crypto.Cipher, logger *slog.Logger) *Job {
	return &Job{cipher: cipher, logger: logger}
}

// RunDir migrates every blob file in an entity class directory. The format
// is detected per file by structure; files already in the current format
// are skipped, which makes the pass idempotent.
func (j *Job) RunDir(ctx context.Context, class domain.EntityClass, dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s directory: %w", class, err)
	}

	result := &Result{Class: string(class), Errors: []string{}}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), store.BlobExt) {
			continue
		}
		result.TotalRecords++

		id := strings.TrimSuffix(entry.Name(), store.BlobExt)
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			result.recordError(id, err)
			continue
		}
		blob := strings.TrimSpace(string(data))

		if !crypto.IsLegacyFormat(blob) {
			result.SkippedCount++
			continue
		}

		if err := j.migrateBlobFile(id, path, blob, result); err != nil {
			result.recordError(id, err)
		}
	}

	j.logger.Info("migration run finished",
		"class", class,
		"total", result.TotalRecords,
		"migrated", result.MigratedCount,
		"skipped", result.SkippedCount,
		"errors", result.ErrorCount,
	)
	return result, nil
}

func (j *Job) migrateBlobFile(id, path, blob string, result *Result) error {
	plaintext, err := j.cipher.DecryptLegacy(blob)
	if err != nil {
		return fmt.Errorf("legacy decrypt: %w", err)
	}

	upgraded, err := j.cipher.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("re-encrypt: %w", err)
	}

	if err := store.WriteFileAtomic(path, []byte(upgraded)); err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}

	result.MigratedCount++
	return nil
}

// StatusDir classifies every blob file in a class directory without
// decrypting anything.
func (j *Job) StatusDir(ctx context.Context, class domain.EntityClass, dir string) (*Status, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s directory: %w", class, err)
	}

	total, legacy := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), store.BlobExt) {
			continue
		}
		total++

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if crypto.IsLegacyFormat(strings.TrimSpace(string(data))) {
			legacy++
		}
	}

	return statusFrom(total, legacy), nil
}

// RunImages migrates image blobs. The index version flag short-circuits
// already-upgraded records so they are never decrypted; the format sniffer
// double-checks each candidate before the legacy path runs.
func (j *Job) RunImages(ctx context.Context, images *store.ImageStore) (*Result, error) {
	index, err := images.Index()
	if err != nil {
		return nil, err
	}

	result := &Result{Class: string(domain.ClassImages), Errors: []string{}}
	result.TotalRecords = len(index)

	for _, entry := range index {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if entry.EncryptionVersion >= crypto.FormatVersionCurrent {
			result.SkippedCount++
			continue
		}

		blob, err := images.RawBlob(entry.ID)
		if err != nil {
			result.recordError(entry.ID, err)
			continue
		}

		if !crypto.IsLegacyFormat(blob) {
			// Flag says legacy but the blob is already current: heal the
			// flag and move on.
			if err := images.MarkMigrated(entry.ID); err != nil {
				result.recordError(entry.ID, err)
				continue
			}
			result.SkippedCount++
			continue
		}

		plaintext, err := j.cipher.DecryptLegacy(blob)
		if err != nil {
			result.recordError(entry.ID, fmt.Errorf("legacy decrypt: %w", err))
			continue
		}

		upgraded, err := j.cipher.Encrypt(plaintext)
		if err != nil {
			result.recordError(entry.ID, fmt.Errorf("re-encrypt: %w", err))
			continue
		}

		if err := images.RewriteBlob(entry.ID, upgraded); err != nil {
			result.recordError(entry.ID, fmt.Errorf("rewrite: %w", err))
			continue
		}
		if err := images.MarkMigrated(entry.ID); err != nil {
			result.recordError(entry.ID, err)
			continue
		}

		result.MigratedCount++
	}

	j.logger.Info("migration run finished",
		"class", domain.ClassImages,
		"total", result.TotalRecords,
		"migrated", result.MigratedCount,
		"skipped", result.SkippedCount,
		"errors", result.ErrorCount,
	)
	return result, nil
}

// StatusImages reads only the index; no blob is opened.
func (j *Job) StatusImages(ctx context.Context, images *store.ImageStore) (*Status, error) {
	index, err := images.Index()
	if err != nil {
		return nil, err
	}

	legacy := 0
	for _, entry := range index {
		if entry.EncryptionVersion < crypto.FormatVersionCurrent {
			legacy++
		}
	}
	return statusFrom(len(index), legacy), nil
}
