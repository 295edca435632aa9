package stats

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"qms/callboard-service/internal/models"
	"qms/callboard-service/internal/store"

	"github.com/rs/zerolog"
)

// DayKeyLayout is the calendar-day bucket used for perDay and rollover.
const DayKeyLayout = "2006-01-02"

type Options struct {
	Location *time.Location
	Now      func() time.Time
}

// Aggregator counts calls per staff member and per day in the stats document.
// Each operation reloads the document, so the store stays the source of truth
// across restarts. The mutex serialises load, update and save within this
// process; separate processes sharing a store can still lose updates.
type Aggregator struct {
	docs   store.DocumentStore
	loc    *time.Location
	now    func() time.Time
	mu     sync.Mutex
	logger zerolog.Logger
}

func NewAggregator(docs store.DocumentStore, options Options, logger zerolog.Logger) *Aggregator {
	loc := options.Location
	if loc == nil {
		loc = time.UTC
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		docs:   docs,
		loc:    loc,
		now:    now,
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

func (a *Aggregator) DayKey(t time.Time) string {
	return t.In(a.loc).Format(DayKeyLayout)
}

func (a *Aggregator) Today() string {
	return a.DayKey(a.now())
}

// RecordCall counts one call for dayKey, or today when dayKey is empty. A
// blank staffName counts towards the totals only.
func (a *Aggregator) RecordCall(ctx context.Context, staffName, dayKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if dayKey == "" {
		dayKey = a.Today()
	}
	snapshot := a.loadLocked(ctx)
	snapshot.TotalCalls++
	if name := strings.TrimSpace(staffName); name != "" {
		snapshot.PerStaff[name]++
	}
	snapshot.PerDay[dayKey]++
	return a.saveLocked(ctx, snapshot)
}

// Snapshot persists any pending rollover before returning the counters.
func (a *Aggregator) Snapshot(ctx context.Context) (models.StatsSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := a.loadLocked(ctx)
	if err := a.saveLocked(ctx, snapshot); err != nil {
		return models.StatsSnapshot{}, err
	}
	return snapshot, nil
}

func (a *Aggregator) ResetAll(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := empty()
	snapshot.LastDayKey = a.Today()
	return a.saveLocked(ctx, snapshot)
}

func (a *Aggregator) loadLocked(ctx context.Context) models.StatsSnapshot {
	snapshot := store.LoadOrDefault(ctx, a.docs, store.StatsDocument, empty, a.logger)
	if snapshot.PerStaff == nil {
		snapshot.PerStaff = map[string]uint64{}
	}
	if snapshot.PerDay == nil {
		snapshot.PerDay = map[string]uint64{}
	}
	a.rollover(&snapshot)
	return snapshot
}

func (a *Aggregator) rollover(snapshot *models.StatsSnapshot) {
	today := a.Today()
	if snapshot.LastDayKey != "" && snapshot.LastDayKey != today {
		a.logger.Info().
			Str("previous_day", snapshot.LastDayKey).
			Str("day", today).
			Uint64("total_calls", snapshot.TotalCalls).
			Msg("day rollover, resetting daily counters")
		snapshot.TotalCalls = 0
		snapshot.PerStaff = map[string]uint64{}
	}
	snapshot.LastDayKey = today
}

func (a *Aggregator) saveLocked(ctx context.Context, snapshot models.StatsSnapshot) error {
	if err := a.docs.Save(ctx, store.StatsDocument, snapshot); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func empty() models.StatsSnapshot {
	return models.StatsSnapshot{
		PerStaff: map[string]uint64{},
		PerDay:   map[string]uint64{},
	}
}
