package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/pkg/crypto"
)

const (
	testKey  = "6b1f0d2a9c4e8b7d6f3a1c5e9b8d7f2a4c6e8b0d2f4a6c8e0b2d4f6a8c0e2b4d"
	otherKey = "1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f1a2b"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newNarrativeStore(t *testing.T) *Store[*domain.Narrative] {
	t.Helper()

	cipher, err := crypto.New(testKey)
	if err != nil {
		t.Fatalf("crypto.New failed: %v", err)
	}

	st, err := New(domain.ClassNarratives, t.TempDir(), cipher,
		func() *domain.Narrative { return &domain.Narrative{} }, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return st
}

func TestStore_SaveAssignsIDAndTimestamps(t *testing.T) {
	st := newNarrativeStore(t)
	ctx := context.Background()

	n := &domain.Narrative{Title: "Test", Content: "<p>hi</p>"}
	if err := st.Save(ctx, n); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if n.ID == "" {
		t.Fatal("Save should assign an ID")
	}

	got, err := st.Get(ctx, n.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Test" || got.Content != "<p>hi</p>" {
		t.Errorf("Get returned %q/%q", got.Title, got.Content)
	}
	if !got.Created.Equal(got.LastModified) {
		t.Errorf("new record should have created == lastModified, got %v / %v", got.Created, got.LastModified)
	}
}

func TestStore_UpdatePreservesCreated(t *testing.T) {
	st := newNarrativeStore(t)
	ctx := context.Background()

	n := &domain.Narrative{Title: "Test", Content: "first version"}
	if err := st.Save(ctx, n); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	id := n.ID
	created := n.Created

	time.Sleep(5 * time.Millisecond)

	update := &domain.Narrative{Title: "Test", Content: "second version"}
	update.ID = id
	if err := st.Save(ctx, update); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "second version" {
		t.Errorf("Content = %q, want %q", got.Content, "second version")
	}
	if !got.Created.Equal(created) {
		t.Errorf("created changed on update: %v -> %v", created, got.Created)
	}
	if !got.LastModified.After(got.Created) {
		t.Errorf("lastModified (%v) should be after created (%v)", got.LastModified, got.Created)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	st := newNarrativeStore(t)

	_, err := st.Get(context.Background(), "missing-id")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DeleteNotFound(t *testing.T) {
	st := newNarrativeStore(t)

	err := st.Delete(context.Background(), "missing-id")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	st := newNarrativeStore(t)
	ctx := context.Background()

	n := &domain.Narrative{Title: "gone soon"}
	if err := st.Save(ctx, n); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := st.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := st.Get(ctx, n.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_GetWrongKeyIsIntegrityError(t *testing.T) {
	st := newNarrativeStore(t)
	ctx := context.Background()

	n := &domain.Narrative{Title: "secret"}
	if err := st.Save(ctx, n); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	wrong, _ := crypto.New(otherKey)
	st2, err := New(domain.ClassNarratives, filepath.Dir(st.Dir()), wrong,
		func() *domain.Narrative { return &domain.Narrative{} }, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = st2.Get(ctx, n.ID)
	if !errors.Is(err, crypto.ErrIntegrity) {
		t.Errorf("expected ErrIntegrity, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Error("integrity failure must not look like not-found")
	}
}

func TestStore_GetCorruptPlaintextIsSerializationError(t *testing.T) {
	st := newNarrativeStore(t)
	ctx := context.Background()

	// Valid ciphertext whose plaintext is not a JSON record
	cipher, err := crypto.New(testKey)
	if err != nil {
		t.Fatalf("crypto.New failed: %v", err)
	}
	blob, err := cipher.Encrypt([]byte("this is not json"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(st.Dir(), "bad-record.enc"), []byte(blob), 0o600); err != nil {
		t.Fatalf("write blob: %v", err)
	}

	_, err = st.Get(ctx, "bad-record")
	if !errors.Is(err, domain.ErrSerialization) {
		t.Errorf("expected ErrSerialization, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, crypto.ErrIntegrity) {
		t.Error("corrupt plaintext must not look like not-found or an integrity failure")
	}
}

func TestStore_ListSkipsCorruptRecords(t *testing.T) {
	st := newNarrativeStore(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if err := st.Save(ctx, &domain.Narrative{Title: title}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	// A foreign file that is neither format
	if err := os.WriteFile(filepath.Join(st.Dir(), "corrupt.enc"), []byte("not a blob"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	summaries, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Errorf("List returned %d records, want 3", len(summaries))
	}
}

func TestStore_ListSortedNewestFirst(t *testing.T) {
	st := newNarrativeStore(t)
	ctx := context.Background()

	first := &domain.Narrative{Title: "first"}
	second := &domain.Narrative{Title: "second"}
	if err := st.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := st.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	summaries, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("List returned %d records, want 2", len(summaries))
	}
	if summaries[0].Title != "second" {
		t.Errorf("newest record should sort first, got %q", summaries[0].Title)
	}
}

func TestStore_ListCacheInvalidatedOnSave(t *testing.T) {
	st := newNarrativeStore(t)
	ctx := context.Background()

	if err := st.Save(ctx, &domain.Narrative{Title: "a"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := st.List(ctx); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if err := st.Save(ctx, &domain.Narrative{Title: "b"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	summaries, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Errorf("cached listing should refresh after save, got %d records", len(summaries))
	}
}

func TestStore_Count(t *testing.T) {
	st := newNarrativeStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := st.Save(ctx, &domain.Narrative{Title: "n"}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	n, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}
