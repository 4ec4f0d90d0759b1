package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/eventclock/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc    *Service
	server *httptest.Server
	clock  *clockwork.FakeClock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	svc := NewService(DefaultConfig(), timer.NewEngine(clock), clock)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Start(ctx)

	blockCtx, blockCancel := context.WithTimeout(ctx, 2*time.Second)
	defer blockCancel()
	require.NoError(t, clock.BlockUntilContext(blockCtx, 1))

	return &serviceFixture{svc: svc, server: server, clock: clock}
}

func (f *serviceFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/timer?client=test"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *serviceFixture) post(t *testing.T, path, body string) {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func (f *serviceFixture) poll(t *testing.T) timer.Snapshot {
	t.Helper()
	resp, err := http.Get(f.server.URL + "/api/timer/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var snap timer.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func readEvent(t *testing.T, conn *websocket.Conn) *TimerEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	event, err := ParseTimerEvent(data)
	require.NoError(t, err)
	return event
}

// readUntil skips pushes until one with the given reason arrives
func readUntil(t *testing.T, conn *websocket.Conn, reason Reason) *TimerEvent {
	t.Helper()
	for {
		if event := readEvent(t, conn); event.Reason == reason {
			return event
		}
	}
}

func TestService_PushAndPollAgree(t *testing.T) {
	f := newServiceFixture(t)
	conn := f.dial(t)

	event := readEvent(t, conn)
	assert.Equal(t, ReasonConnect, event.Reason)
	assert.Equal(t, timer.StatusIdle, event.Data.Status)

	f.post(t, "/api/timer/start", `{"direction":"down","broadcast_precision":"s","max_duration_ms":5000,"stop_behavior":"none"}`)
	event = readUntil(t, conn, ReasonCommand)
	assert.True(t, event.Data.Running)
	assert.Equal(t, "00:05", event.Data.FormattedTime)

	polled := f.poll(t)
	assert.Equal(t, event.Data.Running, polled.Running)
	assert.Equal(t, event.Data.IsOverflow, polled.IsOverflow)

	f.clock.Advance(6 * time.Second)
	event = readUntil(t, conn, ReasonTick)
	assert.True(t, event.Data.Running)
	assert.True(t, event.Data.IsOverflow)
	assert.Equal(t, int64(-1000), event.Data.ElapsedMs)

	polled = f.poll(t)
	assert.Equal(t, event.Data, polled)

	f.post(t, "/api/timer/reset", "")
	event = readUntil(t, conn, ReasonCommand)
	assert.Equal(t, timer.StatusIdle, event.Data.Status)
	assert.Equal(t, f.poll(t), event.Data)
}

func TestService_DisconnectedClientIsDropped(t *testing.T) {
	f := newServiceFixture(t)
	conn := f.dial(t)
	readEvent(t, conn)

	require.Eventually(t, func() bool { return f.svc.Stats().WebSockets == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		f.svc.broadcaster.Publish(ReasonTick)
		return f.svc.Stats().WebSockets == 0
	}, 2*time.Second, 10*time.Millisecond)

	// polling still works with nobody subscribed
	assert.Equal(t, timer.StatusIdle, f.poll(t).Status)
}

func TestService_SinksReceivePushes(t *testing.T) {
	f := newServiceFixture(t)
	sink := &recordingSubscriber{id: "sink"}
	f.svc.AddSink(sink)

	f.post(t, "/api/timer/start", "")

	require.Eventually(t, func() bool { return sink.received() > 0 }, 2*time.Second, 10*time.Millisecond)
	event := sink.lastEvent(t)
	assert.True(t, event.Data.Running)
	require.NotNil(t, f.svc.LastEvent())
	assert.Equal(t, event.ID, f.svc.LastEvent().ID)
}
