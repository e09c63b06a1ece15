package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-ingest/internal/config"
	"github.com/moyu-x/file-ingest/internal/dedup"
	"github.com/moyu-x/file-ingest/internal/extractor"
	"github.com/moyu-x/file-ingest/internal/hasher"
	"github.com/moyu-x/file-ingest/internal/ingest"
	"github.com/moyu-x/file-ingest/internal/pipeline"
	"github.com/moyu-x/file-ingest/internal/relocate"
	"github.com/moyu-x/file-ingest/internal/storage"
)

// fakeStore 内存桩存储，带按哈希去重
type fakeStore struct {
	records map[string]*ingest.Metadata
	byHash  map[string]string
	nextID  int
	logs    []*ingest.ProcessLogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*ingest.Metadata),
		byHash:  make(map[string]string),
	}
}

func (f *fakeStore) Connect(ctx context.Context) error       { return nil }
func (f *fakeStore) Close(ctx context.Context) error         { return nil }
func (f *fakeStore) HealthCheck(ctx context.Context) bool    { return true }
func (f *fakeStore) CreateIndexes(ctx context.Context) error { return nil }

func (f *fakeStore) InsertMetadata(ctx context.Context, m *ingest.Metadata) (string, error) {
	f.nextID++
	id := strconv.Itoa(f.nextID)
	stored := *m
	stored.ID = id
	f.records[id] = &stored
	if m.ContentHash != "" {
		f.byHash[m.ContentHash] = id
	}
	return id, nil
}

func (f *fakeStore) UpdateMetadata(ctx context.Context, id string, fields map[string]any) (bool, error) {
	m, ok := f.records[id]
	if !ok {
		return false, nil
	}
	if status, ok := fields["status"].(string); ok {
		m.Status = ingest.RecordStatus(status)
	}
	return true, nil
}

func (f *fakeStore) GetMetadata(ctx context.Context, id string) (*ingest.Metadata, error) {
	m, ok := f.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) FindByHash(ctx context.Context, hash string) (*ingest.Metadata, error) {
	id, ok := f.byHash[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return f.records[id], nil
}

func (f *fakeStore) InsertProcessLog(ctx context.Context, e *ingest.ProcessLogEntry) (string, error) {
	f.logs = append(f.logs, e)
	return strconv.Itoa(len(f.logs)), nil
}

// blockingStore 在哈希查询处阻塞，直到测试放行
type blockingStore struct {
	*fakeStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		fakeStore: newFakeStore(),
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (b *blockingStore) FindByHash(ctx context.Context, hash string) (*ingest.Metadata, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.fakeStore.FindByHash(ctx, hash)
}

func newScheduler(t *testing.T, fs afero.Fs, store storage.Store) *Scheduler {
	t.Helper()

	log := zerolog.Nop()

	h, err := hasher.New(fs, "sha256")
	if err != nil {
		t.Fatalf("hasher.New() error = %v", err)
	}

	folders := config.Folders{
		Incoming:   "/incoming",
		Raw:        "/raw",
		Validated:  "/validated",
		Failed:     "/failed",
		Duplicates: "/duplicates",
	}
	processor := pipeline.New(fs, extractor.NewDispatch(fs, log), h,
		dedup.NewGate(store, false, log), store, relocate.NewMover(fs, log), folders, log)

	return New(fs, processor, h, 2, "/incoming", 1, log)
}

func newTestScheduler(t *testing.T, fs afero.Fs) (*Scheduler, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return newScheduler(t, fs, store), store
}

func TestRunCycle(t *testing.T) {
	fs := afero.NewMemMapFs()
	sched, store := newTestScheduler(t, fs)

	files := map[string]string{
		"/incoming/a.csv":     "id,name\n1,alice\n",
		"/incoming/b.csv":     "id,name\n2,bob\n",
		"/incoming/empty.png": "",
	}
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	stats := sched.RunCycle()

	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.Processed != 2 {
		t.Errorf("Processed = %d, want 2", stats.Processed)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Duplicates != 0 {
		t.Errorf("Duplicates = %d, want 0", stats.Duplicates)
	}
	if len(store.records) != 2 {
		t.Errorf("Expected 2 metadata records, got %d", len(store.records))
	}

	// incoming 清空
	entries, err := afero.ReadDir(fs, "/incoming")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty incoming directory, got %d entries", len(entries))
	}
}

func TestRunCycle_DuplicateContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	sched, store := newTestScheduler(t, fs)

	content := "id,name\n1,alice\n"
	for _, name := range []string{"/incoming/first.csv", "/incoming/second.csv"} {
		if err := afero.WriteFile(fs, name, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	stats := sched.RunCycle()

	if stats.Processed != 1 {
		t.Errorf("Processed = %d, want 1", stats.Processed)
	}
	if stats.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", stats.Duplicates)
	}
	if len(store.records) != 1 {
		t.Errorf("Expected 1 metadata record, got %d", len(store.records))
	}
}

func TestRunCycle_MissingIncoming(t *testing.T) {
	sched, _ := newTestScheduler(t, afero.NewMemMapFs())

	stats := sched.RunCycle()

	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0 for missing incoming directory", stats.Total)
	}
}

func TestRunCycle_EmptyIncoming(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/incoming", 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	sched, _ := newTestScheduler(t, fs)

	stats := sched.RunCycle()

	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0 for empty incoming directory", stats.Total)
	}
}

func TestRunCycle_SkipsSubdirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/incoming/nested", 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := afero.WriteFile(fs, "/incoming/a.csv", []byte("id\n1\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	sched, _ := newTestScheduler(t, fs)

	stats := sched.RunCycle()

	if stats.Total != 1 {
		t.Errorf("Total = %d, want 1 (subdirectories are not listed)", stats.Total)
	}
}

func TestRunCycle_EmitsEvents(t *testing.T) {
	fs := afero.NewMemMapFs()
	sched, _ := newTestScheduler(t, fs)

	for i := 0; i < 2; i++ {
		path := fmt.Sprintf("/incoming/file_%d.csv", i)
		if err := afero.WriteFile(fs, path, []byte(fmt.Sprintf("id\n%d\n", i)), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	events := sched.Events()

	sched.RunCycle()

	var starts, dones, ends int
	for len(events) > 0 {
		e := <-events
		switch e.Kind {
		case EventCycleStart:
			starts++
		case EventFileDone:
			dones++
			if e.Outcome == nil {
				t.Error("Expected outcome on EventFileDone")
			}
		case EventCycleEnd:
			ends++
			if e.Stats == nil {
				t.Error("Expected stats on EventCycleEnd")
			}
		}
	}

	if starts != 1 || ends != 1 {
		t.Errorf("Expected 1 cycle start and end, got %d/%d", starts, ends)
	}
	if dones != 2 {
		t.Errorf("Expected 2 file events, got %d", dones)
	}
}

func TestStartStop(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/incoming", 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	sched, _ := newTestScheduler(t, fs)

	if sched.Running() {
		t.Error("Expected scheduler to not be running before Start")
	}

	// 初始周期同步执行，空目录下立即返回
	sched.Start()
	if !sched.Running() {
		t.Error("Expected scheduler to be running after Start")
	}

	// 重复启动不报错
	sched.Start()

	sched.Stop()
	if sched.Running() {
		t.Error("Expected scheduler to be stopped after Stop")
	}

	// Stop 幂等
	sched.Stop()
}

func TestStop_WaitsForInitialCycle(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/incoming/a.csv", []byte("id\n1\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	store := newBlockingStore()
	sched := newScheduler(t, fs, store)
	events := sched.Events()

	// 初始周期是同步的，后台启动后等它进入存储查询
	go sched.Start()
	select {
	case <-store.started:
	case <-time.After(5 * time.Second):
		t.Fatal("Initial cycle did not reach the store")
	}

	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()

	// 周期还在进行，Stop 不能返回
	select {
	case <-stopped:
		t.Fatal("Stop() returned while a cycle was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(store.release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return after the cycle finished")
	}

	// 事件通道由 Stop 关闭，周期事件全部送达后结束
	var dones int
	for e := range events {
		if e.Kind == EventFileDone {
			dones++
		}
	}
	if dones != 1 {
		t.Errorf("Expected 1 file event before channel close, got %d", dones)
	}

	// 停止后不再执行新周期
	if err := afero.WriteFile(fs, "/incoming/b.csv", []byte("id\n2\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	sched.runCycle()
	if len(store.records) != 1 {
		t.Errorf("Expected no cycle after Stop, got %d records", len(store.records))
	}
}

func TestEvents_ClosedAfterStop(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/incoming", 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	sched, _ := newTestScheduler(t, fs)
	events := sched.Events()

	sched.Start()
	sched.Stop()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("Expected no buffered events for an empty cycle")
		}
	case <-time.After(time.Second):
		t.Error("Expected events channel to be closed after Stop")
	}
}
