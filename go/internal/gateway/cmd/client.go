package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/eventclock/go/internal/gateway"
	"github.com/mcdev12/eventclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Update is a decoded timer_update push
type Update = gateway.TimerEvent

// Client talks to the eventclock REST and WebSocket endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
}

// startBody leaves unset fields out of the request so a preset's values
// are not overwritten with empty strings
type startBody struct {
	Direction          string `json:"direction,omitempty"`
	BroadcastPrecision string `json:"broadcast_precision,omitempty"`
	MaxDurationMs      *int64 `json:"max_duration_ms,omitempty"`
	StopBehavior       string `json:"stop_behavior,omitempty"`
}

// Start posts a start command, optionally selecting a named preset
func (c *Client) Start(ctx context.Context, preset string, req timer.StartRequest) (*gateway.APIResponse, error) {
	path := "/api/timer/start"
	if preset != "" {
		path += "?preset=" + url.QueryEscape(preset)
	}

	body, err := json.Marshal(startBody{
		Direction:          req.Direction,
		BroadcastPrecision: req.BroadcastPrecision,
		MaxDurationMs:      req.MaxDurationMs,
		StopBehavior:       req.StopBehavior,
	})
	if err != nil {
		return nil, fmt.Errorf("encode start request: %w", err)
	}
	return c.post(ctx, path, body)
}

// Command posts a body-less command such as pause or reset
func (c *Client) Command(ctx context.Context, command string) (*gateway.APIResponse, error) {
	return c.post(ctx, "/api/timer/"+command, nil)
}

// State polls the current snapshot and also returns the raw body
func (c *Client) State(ctx context.Context) (*timer.Snapshot, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/timer/state", nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("poll state: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read state: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("poll state: server returned %s", resp.Status)
	}

	var snap timer.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, nil, fmt.Errorf("decode state: %w", err)
	}
	return &snap, bytes.TrimSpace(raw), nil
}

// Watch subscribes to the push channel and calls fn for every update until
// ctx is cancelled or the server closes the connection
func (c *Client) Watch(ctx context.Context, fn func(*Update)) error {
	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", wsURL, err)
	}
	defer conn.Close()
	log.Debug().Str("url", wsURL).Msg("subscribed to timer updates")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read update: %w", err)
		}

		event, err := gateway.ParseTimerEvent(data)
		if err != nil {
			log.Warn().Err(err).Msg("skipping message")
			continue
		}
		fn(event)
	}
}

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/timer"
	u.RawQuery = url.Values{"client": {"timerctl"}}.Encode()
	return u.String(), nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*gateway.APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	var apiResp gateway.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Status != "success" {
		if apiResp.Error == "" {
			return nil, fmt.Errorf("post %s: server returned %s", path, resp.Status)
		}
		return nil, errors.New(apiResp.Error)
	}
	return &apiResp, nil
}

// buildStartRequest turns CLI flags into a start request. Unset flags are
// omitted so server defaults or the preset apply.
func buildStartRequest(direction, precision, maxDur, stop string) (timer.StartRequest, error) {
	req := timer.StartRequest{
		Direction:          direction,
		BroadcastPrecision: precision,
		StopBehavior:       stop,
	}
	if maxDur != "" {
		ms, err := timer.ParseDuration(maxDur)
		if err != nil {
			return req, err
		}
		req.MaxDurationMs = &ms
	}
	return req, nil
}

func printSnapshot(snap *timer.Snapshot) {
	if snap == nil {
		return
	}
	line := fmt.Sprintf("%s  %s", snap.FormattedTime, snap.Status)
	if snap.Status != timer.StatusIdle {
		line += fmt.Sprintf(" (%s, %s)", snap.Direction, snap.Precision)
	}
	if snap.IsOverflow {
		line += " overflow"
	}
	fmt.Println(line)
}
