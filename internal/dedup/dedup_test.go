package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/moyu-x/file-ingest/internal/ingest"
	"github.com/moyu-x/file-ingest/internal/storage"
)

// fakeStore 内存桩存储，只实现网关用到的行为
type fakeStore struct {
	byHash  map[string]*ingest.Metadata
	findErr error
	logErr  error
	logs    []*ingest.ProcessLogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: make(map[string]*ingest.Metadata)}
}

func (f *fakeStore) Connect(ctx context.Context) error       { return nil }
func (f *fakeStore) Close(ctx context.Context) error         { return nil }
func (f *fakeStore) HealthCheck(ctx context.Context) bool    { return true }
func (f *fakeStore) CreateIndexes(ctx context.Context) error { return nil }

func (f *fakeStore) InsertMetadata(ctx context.Context, m *ingest.Metadata) (string, error) {
	return "", nil
}

func (f *fakeStore) UpdateMetadata(ctx context.Context, id string, fields map[string]any) (bool, error) {
	return false, nil
}

func (f *fakeStore) GetMetadata(ctx context.Context, id string) (*ingest.Metadata, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeStore) FindByHash(ctx context.Context, hash string) (*ingest.Metadata, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if m, ok := f.byHash[hash]; ok {
		return m, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) InsertProcessLog(ctx context.Context, e *ingest.ProcessLogEntry) (string, error) {
	if f.logErr != nil {
		return "", f.logErr
	}
	f.logs = append(f.logs, e)
	return "1", nil
}

func TestGateCheck_NotDuplicate(t *testing.T) {
	g := NewGate(newFakeStore(), false, zerolog.Nop())

	dup, existing, err := g.Check(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if dup {
		t.Error("Expected unseen hash to not be duplicate")
	}
	if existing != nil {
		t.Error("Expected no existing record for unseen hash")
	}
}

func TestGateCheck_Duplicate(t *testing.T) {
	store := newFakeStore()
	store.byHash["abc123"] = &ingest.Metadata{FileName: "original.csv", ContentHash: "abc123"}

	g := NewGate(store, false, zerolog.Nop())

	dup, existing, err := g.Check(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !dup {
		t.Error("Expected known hash to be duplicate")
	}
	if existing == nil || existing.FileName != "original.csv" {
		t.Error("Expected existing record to be returned")
	}
}

func TestGateCheck_LookupErrorFailClosed(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("connection reset")

	g := NewGate(store, false, zerolog.Nop())

	if _, _, err := g.Check(context.Background(), "abc123"); err == nil {
		t.Error("Expected lookup error to propagate when fail_open is off")
	}
}

func TestGateCheck_LookupErrorFailOpen(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("connection reset")

	g := NewGate(store, true, zerolog.Nop())

	dup, _, err := g.Check(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Check() error = %v, want admit on fail_open", err)
	}
	if dup {
		t.Error("Expected fail_open to admit the file as non-duplicate")
	}
}

func TestLogDuplicate(t *testing.T) {
	store := newFakeStore()
	g := NewGate(store, false, zerolog.Nop())

	g.LogDuplicate(context.Background(), "copy.csv", "original.csv")

	if len(store.logs) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(store.logs))
	}
	entry := store.logs[0]
	if entry.FileName != "copy.csv" {
		t.Errorf("FileName = %s, want copy.csv", entry.FileName)
	}
	if entry.Status != StatusDuplicateRejected {
		t.Errorf("Status = %s, want %s", entry.Status, StatusDuplicateRejected)
	}
}

func TestLogDuplicate_WriteFailureDoesNotPanic(t *testing.T) {
	store := newFakeStore()
	store.logErr = errors.New("disk full")

	g := NewGate(store, false, zerolog.Nop())
	g.LogDuplicate(context.Background(), "copy.csv", "original.csv")

	if len(store.logs) != 0 {
		t.Error("Expected no log entry on write failure")
	}
}
