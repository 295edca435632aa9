package stats

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"qms/callboard-service/internal/models"
	"qms/callboard-service/internal/store"
	"qms/callboard-service/internal/store/filestore"

	"github.com/rs/zerolog"
)

type memoryStore struct {
	mu     sync.Mutex
	docs   map[string][]byte
	saveFn func(name string) error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[string][]byte{}}
}

func (m *memoryStore) Load(_ context.Context, name string, into any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[name]
	if !ok {
		return store.ErrDocumentNotFound
	}
	return json.Unmarshal(data, into)
}

func (m *memoryStore) Save(_ context.Context, name string, value any) error {
	if m.saveFn != nil {
		if err := m.saveFn(name); err != nil {
			return err
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = data
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestRecordCallRollsOverDailyCounters(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: day(2025, 1, 1)}
	agg := NewAggregator(newMemoryStore(), Options{Now: clk.Now}, zerolog.Nop())

	if err := agg.RecordCall(ctx, "alice", "2025-01-01"); err != nil {
		t.Fatalf("record alice: %v", err)
	}
	clk.Set(day(2025, 1, 2))
	if err := agg.RecordCall(ctx, "bob", "2025-01-02"); err != nil {
		t.Fatalf("record bob: %v", err)
	}

	got, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.TotalCalls != 1 {
		t.Fatalf("expected totalCalls 1, got %d", got.TotalCalls)
	}
	if !reflect.DeepEqual(got.PerStaff, map[string]uint64{"bob": 1}) {
		t.Fatalf("unexpected perStaff: %v", got.PerStaff)
	}
	if !reflect.DeepEqual(got.PerDay, map[string]uint64{"2025-01-01": 1, "2025-01-02": 1}) {
		t.Fatalf("unexpected perDay: %v", got.PerDay)
	}
	if got.LastDayKey != "2025-01-02" {
		t.Fatalf("unexpected lastDayKey: %q", got.LastDayKey)
	}
}

func TestResetAllThenSnapshot(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: day(2025, 3, 10)}
	agg := NewAggregator(newMemoryStore(), Options{Now: clk.Now}, zerolog.Nop())

	for _, name := range []string{"alice", "bob", ""} {
		if err := agg.RecordCall(ctx, name, ""); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := agg.ResetAll(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	got, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := models.StatsSnapshot{
		TotalCalls: 0,
		PerStaff:   map[string]uint64{},
		PerDay:     map[string]uint64{},
		LastDayKey: "2025-03-10",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %+v, want %+v", got, want)
	}
}

func TestRecordCallSkipsBlankStaffName(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: day(2025, 1, 1)}
	agg := NewAggregator(newMemoryStore(), Options{Now: clk.Now}, zerolog.Nop())

	if err := agg.RecordCall(ctx, "   ", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := agg.RecordCall(ctx, " alice ", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, _ := agg.Snapshot(ctx)
	if got.TotalCalls != 2 || !reflect.DeepEqual(got.PerStaff, map[string]uint64{"alice": 1}) {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.PerDay["2025-01-01"] != 2 {
		t.Fatalf("expected two calls today, got %v", got.PerDay)
	}
}

func TestSnapshotPersistsRollover(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryStore()
	clk := &clock{now: day(2025, 1, 1)}
	agg := NewAggregator(docs, Options{Now: clk.Now}, zerolog.Nop())
	if err := agg.RecordCall(ctx, "alice", ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	clk.Set(day(2025, 1, 2))
	if _, err := agg.Snapshot(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	var persisted models.StatsSnapshot
	if err := docs.Load(ctx, store.StatsDocument, &persisted); err != nil {
		t.Fatalf("load: %v", err)
	}
	if persisted.TotalCalls != 0 || len(persisted.PerStaff) != 0 || persisted.LastDayKey != "2025-01-02" {
		t.Fatalf("rollover not persisted: %+v", persisted)
	}
	if persisted.PerDay["2025-01-01"] != 1 {
		t.Fatalf("perDay lost on rollover: %v", persisted.PerDay)
	}
}

func TestDayKeyUsesConfiguredLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Riyadh")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	instant := time.Date(2025, 1, 1, 22, 30, 0, 0, time.UTC)

	utc := NewAggregator(newMemoryStore(), Options{}, zerolog.Nop())
	riyadh := NewAggregator(newMemoryStore(), Options{Location: loc}, zerolog.Nop())

	if got := utc.DayKey(instant); got != "2025-01-01" {
		t.Fatalf("utc day key = %q", got)
	}
	if got := riyadh.DayKey(instant); got != "2025-01-02" {
		t.Fatalf("riyadh day key = %q", got)
	}
	if len(riyadh.DayKey(instant)) != 10 {
		t.Fatalf("day key must be 10 characters")
	}
}

func TestCorruptDocumentFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryStore()
	docs.docs[store.StatsDocument] = []byte("{broken")
	clk := &clock{now: day(2025, 1, 1)}
	agg := NewAggregator(docs, Options{Now: clk.Now}, zerolog.Nop())

	if err := agg.RecordCall(ctx, "alice", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.TotalCalls != 1 || got.PerStaff["alice"] != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestSaveFailureIsReturned(t *testing.T) {
	docs := newMemoryStore()
	docs.saveFn = func(string) error { return errors.New("disk full") }
	agg := NewAggregator(docs, Options{}, zerolog.Nop())

	if err := agg.RecordCall(context.Background(), "alice", ""); err == nil {
		t.Fatalf("expected save error")
	}
	if _, err := agg.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected save error from snapshot")
	}
	if err := agg.ResetAll(context.Background()); err == nil {
		t.Fatalf("expected save error from reset")
	}
}

func TestConcurrentRecordCallsAreNotLost(t *testing.T) {
	ctx := context.Background()
	docs, err := filestore.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	clk := &clock{now: day(2025, 1, 1)}
	agg := NewAggregator(docs, Options{Now: clk.Now}, zerolog.Nop())

	const calls = 40
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := agg.RecordCall(ctx, "alice", ""); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.TotalCalls != calls || got.PerStaff["alice"] != calls {
		t.Fatalf("lost updates: %+v", got)
	}
}
