package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/eventclock/go/internal/gateway"
	"github.com/mcdev12/eventclock/go/internal/journal"
	"github.com/mcdev12/eventclock/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowStore struct {
	mu      sync.Mutex
	delay   time.Duration
	entries []journal.Entry
}

func (s *slowStore) Append(_ context.Context, entry journal.Entry) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *slowStore) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[:min(limit, len(s.entries))], nil
}

func (s *slowStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func newTestServices(t *testing.T, store journal.Store) *Services {
	t.Helper()

	clock := clockwork.NewFakeClock()
	engine := timer.NewEngine(clock)
	services := &Services{
		Engine:  engine,
		Gateway: gateway.NewService(gateway.DefaultConfig(), engine, clock),
	}
	if store != nil {
		services.recorder = journal.NewRecorder(store, clock, journal.DefaultConfig())
		services.Gateway.SetJournal(services.recorder)
	}
	return services
}

func TestServices_RunWaitsForJournalFlush(t *testing.T) {
	store := &slowStore{delay: 20 * time.Millisecond}
	services := newTestServices(t, store)

	services.recorder.CommandApplied(journal.CommandStart, services.Engine.Snapshot())
	services.recorder.CommandApplied(journal.CommandPause, services.Engine.Snapshot())
	services.recorder.CommandApplied(journal.CommandReset, services.Engine.Snapshot())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	services.Run(ctx)

	assert.Equal(t, 3, store.count())
}

func TestServices_RunWithoutJournal(t *testing.T) {
	services := newTestServices(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		services.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServer_HealthAndInfo(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	cfg.NATSURL = ""
	cfg.JournalEnabled = true

	server := httptest.NewServer(setupServer(cfg, newTestServices(t, &slowStore{})).Handler)
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var info ServiceInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "eventclock", info.Service)
	assert.Equal(t, version, info.Version)
	assert.Equal(t, cfg.BroadcastInterval.Milliseconds(), info.BroadcastIntervalMs)
	assert.True(t, info.Journal)
	assert.False(t, info.NATS)
	assert.Equal(t, 0, info.Subscribers.TotalSubscribers)
}
