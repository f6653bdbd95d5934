// Package scheduler runs catalog operations on cron schedules. Entries are
// declared at startup; the scheduler holds their next-run times in memory.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/operon-dev/operon/pkg/operation"
)

// Entry is one scheduled invocation of a catalog operation.
type Entry struct {
	Name      string         // unique entry identifier
	Operation string         // catalog operation to call
	Cron      string         // five-field cron expression
	Input     map[string]any // raw input passed to every call
	Actor     any            // identity passed to policy gates
	DryRun    bool           // run the dry-run sequence instead of Call
}

type scheduledEntry struct {
	Entry
	schedule cron.Schedule
	nextRun  time.Time
}

// Scheduler ticks once a minute and calls the entries that are due.
type Scheduler struct {
	catalog *operation.Catalog
	parser  cron.Parser
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex

	entriesMu sync.Mutex
	entries   map[string]*scheduledEntry

	inflightMu sync.Mutex
	inflight   map[string]struct{} // entry names currently executing (dedup)
}

// New creates a scheduler over a catalog.
func New(catalog *operation.Catalog, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		catalog:  catalog,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		entries:  make(map[string]*scheduledEntry),
		inflight: make(map[string]struct{}),
	}
}

// Add registers an entry. The cron expression is parsed here and the
// operation must already be in the catalog, so a bad entry fails at startup.
func (s *Scheduler) Add(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("schedule entry has no name")
	}
	if _, err := s.catalog.Get(e.Operation); err != nil {
		return fmt.Errorf("schedule entry %q: %w", e.Name, err)
	}
	schedule, err := s.parser.Parse(e.Cron)
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", e.Cron, err)
	}

	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	if _, exists := s.entries[e.Name]; exists {
		return fmt.Errorf("schedule entry %q already registered", e.Name)
	}
	s.entries[e.Name] = &scheduledEntry{
		Entry:    e,
		schedule: schedule,
		nextRun:  schedule.Next(time.Now().UTC()),
	}
	return nil
}

// NextRun returns the next run time of a named entry.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return e.nextRun, true
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", "entries", s.count())
	return nil
}

func (s *Scheduler) count() int {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick calls every entry due at now and advances its next-run time. The loop
// calls this once a minute; tests call it directly.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, e := range s.due(now) {
		if !s.tryAcquire(e.Name) {
			continue // previous run still going (dedup)
		}
		s.run(ctx, e)
		s.release(e.Name)
	}
}

// due collects entries whose next run has arrived and advances their clocks.
func (s *Scheduler) due(now time.Time) []*scheduledEntry {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()

	var out []*scheduledEntry
	for _, e := range s.entries {
		if e.nextRun.After(now) {
			continue
		}
		e.nextRun = e.schedule.Next(now)
		out = append(out, e)
	}
	return out
}

func (s *Scheduler) run(ctx context.Context, e *scheduledEntry) {
	s.logger.Info("running scheduled entry",
		"entry", e.Name, "operation", e.Operation, "dry_run", e.DryRun)

	def, err := s.catalog.Get(e.Operation)
	if err != nil {
		s.logger.Error("scheduled operation missing from catalog",
			"entry", e.Name, "operation", e.Operation, "error", err)
		return
	}

	var opts []operation.CallOption
	if e.Actor != nil {
		opts = append(opts, operation.WithActor(e.Actor))
	}

	if e.DryRun {
		_, err = def.DryRun(ctx, e.Input, opts...)
	} else {
		_, err = def.Call(ctx, e.Input, opts...)
	}
	if err != nil {
		s.logger.Error("scheduled entry failed",
			"entry", e.Name, "operation", e.Operation, "error", err)
	}
}

// tryAcquire returns true and marks the entry as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Scheduler) release(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
