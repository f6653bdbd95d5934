package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operon-dev/operon/pkg/operation"
)

func newCountedCatalog(t *testing.T, calls, dryCalls *atomic.Int64) *operation.Catalog {
	t.Helper()
	cat := operation.NewCatalog()
	cat.MustRegister(operation.Define("report").
		Step("emit", func(_ context.Context, st, _ any) (any, error) {
			calls.Add(1)
			return st, nil
		}).
		DryStepFunc("emit", func(_ context.Context, st, _ any) (any, error) {
			dryCalls.Add(1)
			return st, nil
		}).
		MustBuild())
	return cat
}

func TestAdd_RejectsUnknownOperation(t *testing.T) {
	var calls, dry atomic.Int64
	s := New(newCountedCatalog(t, &calls, &dry), nil)

	err := s.Add(Entry{Name: "nightly", Operation: "missing", Cron: "0 3 * * *"})
	require.Error(t, err)
}

func TestAdd_RejectsBadCron(t *testing.T) {
	var calls, dry atomic.Int64
	s := New(newCountedCatalog(t, &calls, &dry), nil)

	err := s.Add(Entry{Name: "nightly", Operation: "report", Cron: "not a cron"})
	require.Error(t, err)
}

func TestAdd_RejectsDuplicateName(t *testing.T) {
	var calls, dry atomic.Int64
	s := New(newCountedCatalog(t, &calls, &dry), nil)

	require.NoError(t, s.Add(Entry{Name: "nightly", Operation: "report", Cron: "0 3 * * *"}))
	err := s.Add(Entry{Name: "nightly", Operation: "report", Cron: "0 4 * * *"})
	require.Error(t, err)
}

func TestTick_RunsDueEntries(t *testing.T) {
	var calls, dry atomic.Int64
	s := New(newCountedCatalog(t, &calls, &dry), nil)
	require.NoError(t, s.Add(Entry{Name: "minutely", Operation: "report", Cron: "* * * * *"}))

	// The entry's first run is the next minute boundary; tick well past it.
	s.Tick(context.Background(), time.Now().UTC().Add(2*time.Minute))
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(0), dry.Load())
}

func TestTick_SkipsEntriesNotDue(t *testing.T) {
	var calls, dry atomic.Int64
	s := New(newCountedCatalog(t, &calls, &dry), nil)
	require.NoError(t, s.Add(Entry{Name: "nightly", Operation: "report", Cron: "0 3 1 1 *"}))

	s.Tick(context.Background(), time.Now().UTC())
	assert.Equal(t, int64(0), calls.Load())
}

func TestTick_AdvancesNextRun(t *testing.T) {
	var calls, dry atomic.Int64
	s := New(newCountedCatalog(t, &calls, &dry), nil)
	require.NoError(t, s.Add(Entry{Name: "minutely", Operation: "report", Cron: "* * * * *"}))

	now := time.Now().UTC().Add(2 * time.Minute)
	s.Tick(context.Background(), now)
	s.Tick(context.Background(), now)
	assert.Equal(t, int64(1), calls.Load(), "same tick instant must not run twice")

	next, ok := s.NextRun("minutely")
	require.True(t, ok)
	assert.True(t, next.After(now))

	s.Tick(context.Background(), now.Add(time.Minute))
	assert.Equal(t, int64(2), calls.Load())
}

func TestTick_DryRunEntries(t *testing.T) {
	var calls, dry atomic.Int64
	s := New(newCountedCatalog(t, &calls, &dry), nil)
	require.NoError(t, s.Add(Entry{Name: "rehearsal", Operation: "report", Cron: "* * * * *", DryRun: true}))

	s.Tick(context.Background(), time.Now().UTC().Add(2*time.Minute))
	assert.Equal(t, int64(0), calls.Load())
	assert.Equal(t, int64(1), dry.Load())
}

func TestStartStop(t *testing.T) {
	var calls, dry atomic.Int64
	s := New(newCountedCatalog(t, &calls, &dry), nil)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "double start is rejected")
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "stop is idempotent")
}
