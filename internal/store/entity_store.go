// Package store persists records as encrypted blobs on disk, one file per
// record ID. Writes always use the current cipher format; reads go through
// the smart decrypt path so records written under the legacy format stay
// readable until migrated.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/pkg/crypto"
)

// BlobExt is the extension for encrypted record files.
const BlobExt = ".enc"

// Store is the generic encrypted store for one entity class. T is a pointer
// record type (e.g. *domain.Narrative). The store exclusively owns the
// files under its directory.
type Store[T domain.Entity] struct {
	class     domain.EntityClass
	dir       string
	cipher    *crypto.Cipher
	newRecord func() T
	logger    *slog.Logger

	// Read-through summary cache, invalidated on every mutation, so
	// repeated listings don't re-decrypt the whole directory.
	mu      sync.RWMutex
	cache   []domain.Summary
	cacheOK bool
}

// New creates a store for one entity class, creating its directory on
// demand.
func New[T domain.Entity](class domain.EntityClass, dataRoot string, cipher *crypto.Cipher, newRecord func() T, logger *slog.Logger) (*Store[T], error) {
	dir := filepath.Join(dataRoot, string(class))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", class, err)
	}
	return &Store[T]{
		class:     class,
		dir:       dir,
		cipher:    cipher,
		newRecord: newRecord,
		logger:    logger,
	}, nil
}

// NewRecord returns a zero record of the store's type, for callers that
// decode request bodies into it.
func (s *Store[T]) NewRecord() T { return s.newRecord() }

// Class returns the entity class this store serves.
func (s *Store[T]) Class() domain.EntityClass { return s.class }

// Dir returns the directory holding this class's blob files.
func (s *Store[T]) Dir() string { return s.dir }

func (s *Store[T]) path(id string) string {
	return filepath.Join(s.dir, id+BlobExt)
}

// Get loads one record: read file, smart-decrypt, deserialize. A missing
// file, a failed decrypt and corrupt plaintext are three distinct errors.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return zero, domain.NewStoreError(s.class, "get", id, domain.ErrNotFound)
		}
		return zero, domain.NewStoreError(s.class, "get", id, err)
	}

	plaintext, err := s.cipher.SmartDecrypt(strings.TrimSpace(string(data)))
	if err != nil {
		return zero, domain.NewStoreError(s.class, "get", id, err)
	}

	rec := s.newRecord()
	if err := json.Unmarshal(plaintext, rec); err != nil {
		return zero, domain.NewStoreError(s.class, "get", id, fmt.Errorf("%w: %v", domain.ErrSerialization, err))
	}

	return rec, nil
}

// Save persists a record, replacing any prior content wholesale. A record
// without an ID gets one; an update preserves the original creation
// timestamp by reading the prior version first.
func (s *Store[T]) Save(ctx context.Context, rec T) error {
	now := time.Now()

	if rec.EntityID() == "" {
		rec.SetEntityID(domain.NewRecordID())
		rec.SetCreated(now)
	} else if prior, err := s.Get(ctx, rec.EntityID()); err == nil {
		rec.SetCreated(prior.CreatedAt())
	} else if rec.CreatedAt().IsZero() {
		rec.SetCreated(now)
	}
	rec.SetModified(now)

	plaintext, err := json.Marshal(rec)
	if err != nil {
		return domain.NewStoreError(s.class, "save", rec.EntityID(), fmt.Errorf("%w: %v", domain.ErrSerialization, err))
	}

	blob, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return domain.NewStoreError(s.class, "save", rec.EntityID(), err)
	}

	if err := WriteFileAtomic(s.path(rec.EntityID()), []byte(blob)); err != nil {
		return domain.NewStoreError(s.class, "save", rec.EntityID(), err)
	}

	s.invalidate()
	return nil
}

// Delete removes a record's backing file.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return domain.NewStoreError(s.class, "delete", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.NewStoreError(s.class, "delete", id, err)
	}

	s.invalidate()
	return nil
}

// List enumerates all records, newest first. A record that fails to decrypt
// or parse is skipped with a warning rather than taking down the whole
// listing; a corrupt file must not break the list view.
func (s *Store[T]) List(ctx context.Context) ([]domain.Summary, error) {
	s.mu.RLock()
	if s.cacheOK {
		out := make([]domain.Summary, len(s.cache))
		copy(out, s.cache)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, domain.NewStoreError(s.class, "list", "", err)
	}

	summaries := make([]domain.Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), BlobExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), BlobExt)

		rec, err := s.Get(ctx, id)
		if err != nil {
			s.logger.Warn("skipping unreadable record",
				"class", s.class,
				"id", id,
				"error", err,
			)
			continue
		}
		summaries = append(summaries, rec.Summarize())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastModified.After(summaries[j].LastModified)
	})

	s.mu.Lock()
	s.cache = make([]domain.Summary, len(summaries))
	copy(s.cache, summaries)
	s.cacheOK = true
	s.mu.Unlock()

	return summaries, nil
}

// Count returns the number of blob files without decrypting anything.
func (s *Store[T]) Count(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, domain.NewStoreError(s.class, "count", "", err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), BlobExt) {
			n++
		}
	}
	return n, nil
}

func (s *Store[T]) invalidate() {
	s.mu.Lock()
	s.cacheOK = false
	s.cache = nil
	s.mu.Unlock()
}

// WriteFileAtomic writes via a temp file and rename so readers never see a
// half-written blob. Every blob and index write in the package goes through
// it, as does the migration job's in-place rewrite.
func WriteFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
