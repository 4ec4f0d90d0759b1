package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/eventclock/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	entries  []Entry
	failures int
	appended chan Entry
}

func newFakeStore(failures int) *fakeStore {
	return &fakeStore{failures: failures, appended: make(chan Entry, 16)}
}

func (s *fakeStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return errors.New("connection refused")
	}
	s.entries = append(s.entries, entry)
	s.appended <- entry
	return nil
}

func (s *fakeStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func waitEntry(t *testing.T, ch <-chan Entry) Entry {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for journal entry")
		return Entry{}
	}
}

func TestRecorder_AppendsCommands(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(0)
	rec := NewRecorder(store, clock, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	snap := timer.Snapshot{Status: timer.StatusRunning, Running: true, FormattedTime: "00:00.0"}
	rec.CommandApplied(CommandStart, snap)

	entry := waitEntry(t, store.appended)
	assert.Equal(t, CommandStart, entry.Command)
	assert.Equal(t, snap, entry.Snapshot)
	assert.Equal(t, clock.Now(), entry.CreatedAt)

	rec.CommandApplied(CommandPause, timer.Snapshot{Status: timer.StatusPaused})
	waitEntry(t, store.appended)

	recent, err := rec.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, CommandPause, recent[0].Command)
}

func TestRecorder_RetriesFailedWrites(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(1)
	rec := NewRecorder(store, clock, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.CommandApplied(CommandReset, timer.Snapshot{Status: timer.StatusIdle})

	blockCtx, blockCancel := context.WithTimeout(ctx, 2*time.Second)
	defer blockCancel()
	require.NoError(t, clock.BlockUntilContext(blockCtx, 1))
	clock.Advance(DefaultConfig().RetryDelay)

	entry := waitEntry(t, store.appended)
	assert.Equal(t, CommandReset, entry.Command)
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 1
	rec := NewRecorder(newFakeStore(0), clockwork.NewFakeClock(), cfg)

	rec.CommandApplied(CommandStart, timer.Snapshot{})
	rec.CommandApplied(CommandPause, timer.Snapshot{})

	assert.Len(t, rec.entries, 1)
}

func TestRecorder_FlushesOnShutdown(t *testing.T) {
	store := newFakeStore(0)
	rec := NewRecorder(store, clockwork.NewFakeClock(), DefaultConfig())

	rec.CommandApplied(CommandStart, timer.Snapshot{})
	rec.CommandApplied(CommandPause, timer.Snapshot{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Equal(t, 2, store.count())
}
