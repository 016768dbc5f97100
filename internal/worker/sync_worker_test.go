package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wastewise/internal/amqp"
	"wastewise/internal/core"
	"wastewise/internal/ports"
	"wastewise/internal/storage"
)

type fakeEntryStore struct {
	mu      sync.Mutex
	entries map[string]core.WasteLogEntry
	status  map[string]string
	order   []string
}

func newFakeEntryStore(entries ...core.WasteLogEntry) *fakeEntryStore {
	s := &fakeEntryStore{entries: map[string]core.WasteLogEntry{}, status: map[string]string{}}
	for _, e := range entries {
		s.entries[e.ID] = e
		s.status[e.ID] = storage.SyncPending
		s.order = append(s.order, e.ID)
	}
	return s
}

func (s *fakeEntryStore) GetEntry(_ context.Context, id string) (core.WasteLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return core.WasteLogEntry{}, fmt.Errorf("%w: %s", ports.ErrEntryNotFound, id)
	}
	return e, nil
}

func (s *fakeEntryStore) SyncStatus(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ports.ErrEntryNotFound, id)
	}
	return st, nil
}

func (s *fakeEntryStore) PendingSyncEntries(_ context.Context, limit int) ([]storage.PendingSyncEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.PendingSyncEntry
	for _, id := range s.order {
		if s.status[id] == storage.SyncSynced {
			continue
		}
		out = append(out, storage.PendingSyncEntry{ID: id, UserID: s.entries[id].UserID})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeEntryStore) MarkSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = storage.SyncSynced
	return nil
}

func (s *fakeEntryStore) MarkSyncError(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = storage.SyncError
	return nil
}

type fakeExporter struct {
	mu       sync.Mutex
	exported []string
	failFor  map[string]bool
}

func (e *fakeExporter) ExportEntry(_ context.Context, entry core.WasteLogEntry) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failFor[entry.ID] {
		return "", errors.New("quota exceeded")
	}
	e.exported = append(e.exported, entry.ID)
	return fmt.Sprintf("row-%d", len(e.exported)), nil
}

type fakeCatalogue struct {
	fetched  []core.Challenge
	fetchErr error
	upserted []core.Challenge
	upserts  int
}

func (c *fakeCatalogue) FetchChallenges(context.Context) ([]core.Challenge, error) {
	return c.fetched, c.fetchErr
}

func (c *fakeCatalogue) UpsertChallenges(_ context.Context, challenges []core.Challenge) error {
	c.upserts++
	c.upserted = challenges
	return nil
}

func entry(id string) core.WasteLogEntry {
	return core.WasteLogEntry{ID: id, UserID: "alice", Date: core.NewDate(2024, 6, 1), Category: core.Recyclable, ItemName: "Cans", Quantity: 0.5}
}

func TestHandleLogSync(t *testing.T) {
	store := newFakeEntryStore(entry("a"))
	exp := &fakeExporter{}
	w := NewSyncWorker(store, nil, exp, nil, 10)
	ctx := context.Background()

	if err := w.HandleLogSync(ctx, amqp.NewLogSyncMessage("a", "alice")); err != nil {
		t.Fatalf("HandleLogSync: %v", err)
	}
	if store.status["a"] != storage.SyncSynced {
		t.Errorf("status = %q, want synced", store.status["a"])
	}

	// redelivery of an exported entry must not append a second row
	if err := w.HandleLogSync(ctx, amqp.NewLogSyncMessage("a", "alice")); err != nil {
		t.Fatalf("HandleLogSync redelivery: %v", err)
	}
	if len(exp.exported) != 1 {
		t.Errorf("exported %d rows, want 1", len(exp.exported))
	}
}

func TestHandleLogSyncUnknownEntryIsAcked(t *testing.T) {
	w := NewSyncWorker(newFakeEntryStore(), nil, &fakeExporter{}, nil, 10)
	if err := w.HandleLogSync(context.Background(), amqp.NewLogSyncMessage("ghost", "alice")); err != nil {
		t.Errorf("HandleLogSync = %v, want nil", err)
	}
}

func TestHandleLogSyncExportFailure(t *testing.T) {
	store := newFakeEntryStore(entry("a"))
	w := NewSyncWorker(store, nil, &fakeExporter{failFor: map[string]bool{"a": true}}, nil, 10)

	if err := w.HandleLogSync(context.Background(), amqp.NewLogSyncMessage("a", "alice")); err == nil {
		t.Fatal("expected error")
	}
	if store.status["a"] != storage.SyncError {
		t.Errorf("status = %q, want error", store.status["a"])
	}
}

func TestProcessPendingEntries(t *testing.T) {
	store := newFakeEntryStore(entry("a"), entry("b"), entry("c"))
	exp := &fakeExporter{failFor: map[string]bool{"b": true}}
	w := NewSyncWorker(store, nil, exp, nil, 10)

	if err := w.ProcessPendingEntries(context.Background()); err != nil {
		t.Fatalf("ProcessPendingEntries: %v", err)
	}

	want := map[string]string{"a": storage.SyncSynced, "b": storage.SyncError, "c": storage.SyncSynced}
	for id, st := range want {
		if store.status[id] != st {
			t.Errorf("status[%s] = %q, want %q", id, store.status[id], st)
		}
	}

	// the failed entry is retried on the next sweep
	delete(exp.failFor, "b")
	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("StartupSyncCheck: %v", err)
	}
	if store.status["b"] != storage.SyncSynced {
		t.Errorf("status[b] = %q after retry, want synced", store.status["b"])
	}
	if len(exp.exported) != 3 {
		t.Errorf("exported = %v, want 3 rows", exp.exported)
	}
}

func TestProcessPendingRespectsBatchSize(t *testing.T) {
	store := newFakeEntryStore(entry("a"), entry("b"), entry("c"))
	exp := &fakeExporter{}
	w := NewSyncWorker(store, nil, exp, nil, 2)

	if err := w.ProcessPendingEntries(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(exp.exported) != 2 {
		t.Errorf("exported %d, want 2", len(exp.exported))
	}
}

func TestRefreshChallenges(t *testing.T) {
	ctx := context.Background()
	catalogue := []core.Challenge{{ID: "c1", Title: "One", Category: core.Landfill, StartDate: core.NewDate(2024, 6, 1), EndDate: core.NewDate(2024, 6, 30), TargetReduction: 2}}

	t.Run("upserts fetched catalogue", func(t *testing.T) {
		c := &fakeCatalogue{fetched: catalogue}
		w := NewSyncWorker(newFakeEntryStore(), c, &fakeExporter{}, c, 10)
		if err := w.RefreshChallenges(ctx); err != nil {
			t.Fatal(err)
		}
		if c.upserts != 1 || len(c.upserted) != 1 {
			t.Errorf("upserts = %d, upserted = %v", c.upserts, c.upserted)
		}
	})

	t.Run("empty catalogue is ignored", func(t *testing.T) {
		c := &fakeCatalogue{}
		w := NewSyncWorker(newFakeEntryStore(), c, &fakeExporter{}, c, 10)
		if err := w.RefreshChallenges(ctx); err != nil {
			t.Fatal(err)
		}
		if c.upserts != 0 {
			t.Errorf("upserts = %d, want 0", c.upserts)
		}
	})

	t.Run("fetch error", func(t *testing.T) {
		c := &fakeCatalogue{fetchErr: errors.New("403")}
		w := NewSyncWorker(newFakeEntryStore(), c, &fakeExporter{}, c, 10)
		if err := w.RefreshChallenges(ctx); err == nil {
			t.Error("expected error")
		}
	})
}

type countingJobs struct {
	sweeps    int64
	refreshes int64
}

func (j *countingJobs) ProcessPendingEntries(context.Context) error {
	atomic.AddInt64(&j.sweeps, 1)
	return nil
}

func (j *countingJobs) RefreshChallenges(context.Context) error {
	atomic.AddInt64(&j.refreshes, 1)
	return nil
}

func TestScheduler(t *testing.T) {
	jobs := &countingJobs{}
	s := NewScheduler(jobs, SchedulerConfig{SyncInterval: 5 * time.Millisecond, RefreshInterval: 5 * time.Millisecond})
	ctx := context.Background()

	if s.IsRunning() {
		t.Fatal("scheduler running before Start")
	}
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&jobs.sweeps) == 0 || atomic.LoadInt64(&jobs.refreshes) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("jobs never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler still running after Stop")
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Errorf("second Stop = %v, want nil", err)
	}
}

func TestSchedulerStopsWhenContextEnds(t *testing.T) {
	s := NewScheduler(&countingJobs{}, SchedulerConfig{SyncInterval: time.Hour, RefreshInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	done := s.doneCh
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after context cancellation")
	}

	if s.IsRunning() {
		t.Error("scheduler reports running after its context ended")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart after context end: %v", err)
	}
	stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	if err := s.Stop(stopCtx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestNewSchedulerDefaults(t *testing.T) {
	s := NewScheduler(&countingJobs{}, SchedulerConfig{})
	if s.config != DefaultSchedulerConfig() {
		t.Errorf("config = %+v, want defaults", s.config)
	}
}
