package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysmon-agent/internal/config"
	"sysmon-agent/internal/model"
)

type decodedFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestHub(t *testing.T) (*Hub, *config.Store, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store, err := config.LoadStore(filepath.Join(t.TempDir(), "settings.yaml"), logger)
	require.NoError(t, err)

	hub := NewHub(logger, "127.0.0.1:0", store)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	return hub, store, srv
}

func dialFeed(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) decodedFrame {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame decodedFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestHealthEndpoint(t *testing.T) {
	_, _, srv := newTestHub(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsUnavailableBeforeFirstSample(t *testing.T) {
	_, _, srv := newTestHub(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsServesLatestSnapshot(t *testing.T) {
	hub, _, srv := newTestHub(t)

	require.NoError(t, hub.Publish(context.Background(), model.Snapshot{Hostname: "host-a", RAMUsagePercent: 41}))
	require.NoError(t, hub.Publish(context.Background(), model.Snapshot{Hostname: "host-a", RAMUsagePercent: 42}))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot model.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, "host-a", snapshot.Hostname)
	assert.Equal(t, 42, snapshot.RAMUsagePercent)
}

func TestSubscriberReceivesSettingsOnConnect(t *testing.T) {
	_, _, srv := newTestHub(t)
	conn := dialFeed(t, srv)

	frame := readFrame(t, conn)
	assert.Equal(t, string(model.FrameTypeSettings), frame.Type)

	var settings config.Settings
	require.NoError(t, json.Unmarshal(frame.Payload, &settings))
	assert.False(t, settings.IncludeSwapInRAM)
}

func TestSubscriberReceivesLatestSnapshotOnConnect(t *testing.T) {
	hub, _, srv := newTestHub(t)
	require.NoError(t, hub.Publish(context.Background(), model.Snapshot{Hostname: "host-a"}))

	conn := dialFeed(t, srv)

	frame := readFrame(t, conn)
	require.Equal(t, string(model.FrameTypeSnapshot), frame.Type)

	var snapshot model.Snapshot
	require.NoError(t, json.Unmarshal(frame.Payload, &snapshot))
	assert.Equal(t, "host-a", snapshot.Hostname)
}

func TestPublishBroadcastsToSubscribers(t *testing.T) {
	hub, _, srv := newTestHub(t)
	conn := dialFeed(t, srv)
	// The settings frame is sent after the subscriber registers, so
	// once it arrives the publish below is guaranteed to reach us.
	readFrame(t, conn)

	require.NoError(t, hub.Publish(context.Background(), model.Snapshot{Hostname: "host-a", CPUUsagePercent: 12.5}))

	frame := readFrame(t, conn)
	require.Equal(t, string(model.FrameTypeSnapshot), frame.Type)

	var snapshot model.Snapshot
	require.NoError(t, json.Unmarshal(frame.Payload, &snapshot))
	assert.Equal(t, 12.5, snapshot.CPUUsagePercent)
}

func TestSwapToggleCommandUpdatesSettings(t *testing.T) {
	_, store, srv := newTestHub(t)
	conn := dialFeed(t, srv)
	readFrame(t, conn) // settings frame sent on connect

	cmd := ClientCommand{Type: "set_include_swap_in_ram", Value: true}
	require.NoError(t, conn.WriteJSON(cmd))

	frame := readFrame(t, conn)
	require.Equal(t, string(model.FrameTypeSettings), frame.Type)

	var settings config.Settings
	require.NoError(t, json.Unmarshal(frame.Payload, &settings))
	assert.True(t, settings.IncludeSwapInRAM)
	assert.True(t, store.Snapshot().IncludeSwapInRAM)
}

func TestConcurrentBroadcastAndCommandReplies(t *testing.T) {
	hub, _, srv := newTestHub(t)
	conn := dialFeed(t, srv)
	readFrame(t, conn)

	// Broadcasts from the publish path and command replies from the
	// connection's own handler target the same connection; both must go
	// through the per-subscriber write lock or the frames interleave.
	const rounds = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < rounds; i++ {
			hub.Publish(context.Background(), model.Snapshot{TimestampUnix: int64(i)})
		}
	}()

	for i := 0; i < rounds; i++ {
		require.NoError(t, conn.WriteJSON(ClientCommand{Type: "get_settings"}))
	}
	<-done

	// Every frame must still decode cleanly: snapshots from the publisher
	// plus at least the command replies.
	settingsFrames := 0
	for settingsFrames < rounds {
		frame := readFrame(t, conn)
		switch frame.Type {
		case string(model.FrameTypeSettings):
			settingsFrames++
		case string(model.FrameTypeSnapshot):
		default:
			t.Fatalf("unexpected frame type %q", frame.Type)
		}
	}
}

func TestGetSettingsCommand(t *testing.T) {
	_, store, srv := newTestHub(t)
	require.NoError(t, store.SetIncludeSwapInRAM(true))

	conn := dialFeed(t, srv)
	readFrame(t, conn) // settings frame sent on connect

	require.NoError(t, conn.WriteJSON(ClientCommand{Type: "get_settings"}))

	frame := readFrame(t, conn)
	require.Equal(t, string(model.FrameTypeSettings), frame.Type)

	var settings config.Settings
	require.NoError(t, json.Unmarshal(frame.Payload, &settings))
	assert.True(t, settings.IncludeSwapInRAM)
}
