package store

import (
	"context"
	"encoding/base64"
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

// indexFile is the shared plaintext index covering all images of the class.
const indexFile = "index.json"

// ImageStore persists image bytes as per-ID encrypted blobs plus a single
// plaintext metadata index, so listing never has to decrypt a blob. Image
// bytes are base64-encoded before encryption, matching the text-safe blob
// contract of the other stores.
//
// The index is rewritten wholesale on every mutation. A process-local mutex
// serializes those rewrites; concurrent writers in separate processes can
// still lose updates, which is a known limitation of the single-file index.
type ImageStore struct {
	dir       string
	indexPath string
	cipher    *crypto.Cipher
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewImages creates the image store, creating its directory on demand.
func NewImages(dataRoot string, cipher *crypto.Cipher, logger *slog.Logger) (*ImageStore, error) {
	dir := filepath.Join(dataRoot, string(domain.ClassImages))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create images directory: %w", err)
	}
	return &ImageStore{
		dir:       dir,
		indexPath: filepath.Join(dir, indexFile),
		cipher:    cipher,
		logger:    logger,
	}, nil
}

func (s *ImageStore) path(id string) string {
	return filepath.Join(s.dir, id+BlobExt)
}

func (s *ImageStore) loadIndex() ([]domain.ImageMeta, error) {
	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read image index: %w", err)
	}

	var index []domain.ImageMeta
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	return index, nil
}

func (s *ImageStore) writeIndex(index []domain.ImageMeta) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal image index: %w", err)
	}
	return WriteFileAtomic(s.indexPath, data)
}

// List returns index entries newest first. Listing reads only the index; an
// entry whose blob has gone missing is still listed (the inconsistency
// surfaces on content fetch, not here).
func (s *ImageStore) List(ctx context.Context) ([]domain.ImageMeta, error) {
	index, err := s.loadIndex()
	if err != nil {
		return nil, domain.NewStoreError(domain.ClassImages, "list", "", err)
	}

	sort.Slice(index, func(i, j int) bool {
		return index[i].LastModified.After(index[j].LastModified)
	})
	return index, nil
}

// Get returns an image's metadata and decrypted bytes.
func (s *ImageStore) Get(ctx context.Context, id string) (*domain.ImageMeta, []byte, error) {
	blob, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, domain.NewStoreError(domain.ClassImages, "get", id, domain.ErrNotFound)
		}
		return nil, nil, domain.NewStoreError(domain.ClassImages, "get", id, err)
	}

	plaintext, err := s.cipher.SmartDecrypt(strings.TrimSpace(string(blob)))
	if err != nil {
		return nil, nil, domain.NewStoreError(domain.ClassImages, "get", id, err)
	}

	data, err := base64.StdEncoding.DecodeString(string(plaintext))
	if err != nil {
		return nil, nil, domain.NewStoreError(domain.ClassImages, "get", id, fmt.Errorf("%w: payload is not base64", domain.ErrSerialization))
	}

	meta := s.findMeta(id)
	if meta == nil {
		// Blob without an index entry: tolerated on read.
		meta = &domain.ImageMeta{ID: id, Size: int64(len(data)), EncryptionVersion: crypto.FormatVersionCurrent}
	}

	return meta, data, nil
}

func (s *ImageStore) findMeta(id string) *domain.ImageMeta {
	index, err := s.loadIndex()
	if err != nil {
		return nil
	}
	for i := range index {
		if index[i].ID == id {
			return &index[i]
		}
	}
	return nil
}

// Save encrypts and writes the blob, then upserts the index entry. The blob
// lands first so a crash between the two steps leaves an orphan blob, never
// an index entry pointing at a missing file.
func (s *ImageStore) Save(ctx context.Context, meta *domain.ImageMeta, data []byte) error {
	now := time.Now()

	if meta.ID == "" {
		meta.ID = domain.NewRecordID()
		meta.Created = now
	} else if prior := s.findMeta(meta.ID); prior != nil {
		meta.Created = prior.Created
	} else if meta.Created.IsZero() {
		meta.Created = now
	}
	meta.LastModified = now
	meta.Size = int64(len(data))
	meta.EncryptionVersion = crypto.FormatVersionCurrent

	blob, err := s.cipher.Encrypt([]byte(base64.StdEncoding.EncodeToString(data)))
	if err != nil {
		return domain.NewStoreError(domain.ClassImages, "save", meta.ID, err)
	}

	if err := WriteFileAtomic(s.path(meta.ID), []byte(blob)); err != nil {
		return domain.NewStoreError(domain.ClassImages, "save", meta.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return domain.NewStoreError(domain.ClassImages, "save", meta.ID, err)
	}
	replaced := false
	for i := range index {
		if index[i].ID == meta.ID {
			index[i] = *meta
			replaced = true
			break
		}
	}
	if !replaced {
		index = append(index, *meta)
	}

	if err := s.writeIndex(index); err != nil {
		return domain.NewStoreError(domain.ClassImages, "save", meta.ID, err)
	}
	return nil
}

// Delete removes the blob and its index entry. Deleting an ID with neither
// is NotFound; an inconsistent pair is cleaned up rather than failed.
func (s *ImageStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removeErr := os.Remove(s.path(id))
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return domain.NewStoreError(domain.ClassImages, "delete", id, removeErr)
	}

	index, err := s.loadIndex()
	if err != nil {
		return domain.NewStoreError(domain.ClassImages, "delete", id, err)
	}
	hadEntry := false
	kept := index[:0]
	for _, entry := range index {
		if entry.ID == id {
			hadEntry = true
			continue
		}
		kept = append(kept, entry)
	}

	if os.IsNotExist(removeErr) && !hadEntry {
		return domain.NewStoreError(domain.ClassImages, "delete", id, domain.ErrNotFound)
	}

	if hadEntry {
		if err := s.writeIndex(kept); err != nil {
			return domain.NewStoreError(domain.ClassImages, "delete", id, err)
		}
	}
	return nil
}

// Index exposes the raw index entries for the migration job.
func (s *ImageStore) Index() ([]domain.ImageMeta, error) {
	index, err := s.loadIndex()
	if err != nil {
		return nil, domain.NewStoreError(domain.ClassImages, "list", "", err)
	}
	return index, nil
}

// RawBlob returns a blob's ciphertext without decrypting it.
func (s *ImageStore) RawBlob(id string) (string, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.NewStoreError(domain.ClassImages, "read", id, domain.ErrNotFound)
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// RewriteBlob replaces a blob's ciphertext in place.
func (s *ImageStore) RewriteBlob(id, blob string) error {
	return WriteFileAtomic(s.path(id), []byte(blob))
}

// MarkMigrated flips an index entry's version flag after its blob has been
// rewritten in the current format.
func (s *ImageStore) MarkMigrated(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return domain.NewStoreError(domain.ClassImages, "migrate", id, err)
	}
	for i := range index {
		if index[i].ID == id {
			index[i].EncryptionVersion = crypto.FormatVersionCurrent
			index[i].LastModified = time.Now()
			return s.writeIndex(index)
		}
	}
	return domain.NewStoreError(domain.ClassImages, "migrate", id, domain.ErrNotFound)
}
