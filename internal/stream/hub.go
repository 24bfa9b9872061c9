package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"sysmon-agent/internal/config"
	"sysmon-agent/internal/model"
)

const shutdownGrace = 3 * time.Second

// ClientCommand is a message from a feed subscriber. The only mutating
// command is the swap-accounting toggle; everything else is read-only.
type ClientCommand struct {
	Type  string `json:"type"`
	Value bool   `json:"value,omitempty"`
}

// subscriber pairs a websocket connection with a write lock. The
// broadcast goroutine and the connection's own reader goroutine both
// send frames, and gorilla/websocket permits only one concurrent writer
// per connection, so every write goes through send.
type subscriber struct {
	conn *websocket.Conn

	mu sync.Mutex
}

func (s *subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub is the local presentation feed. It serves the latest snapshot over
// HTTP, pushes every snapshot to websocket subscribers, and accepts the
// swap-accounting toggle back from them. It is the process's only Sink.
type Hub struct {
	logger   *slog.Logger
	addr     string
	settings *config.Store
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]bool

	latest atomic.Pointer[model.Snapshot]
	server *http.Server
}

func NewHub(logger *slog.Logger, addr string, settings *config.Store) *Hub {
	return &Hub{
		logger:      logger,
		addr:        addr,
		settings:    settings,
		subscribers: make(map[*subscriber]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/metrics", h.handleMetrics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return mux
}

// Run serves the feed until ctx is cancelled, then drains with a short
// grace period.
func (h *Hub) Run(ctx context.Context) error {
	h.server = &http.Server{Addr: h.addr, Handler: h.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Warn("feed server shutdown", "error", err)
		}
		<-errCh
		return nil
	}
}

// Publish stores the snapshot for HTTP readers and fans it out to every
// websocket subscriber. A subscriber that fails to accept the write is
// dropped; it can reconnect.
func (h *Hub) Publish(ctx context.Context, s model.Snapshot) error {
	h.latest.Store(&s)

	data, err := EncodeFrame(NewSnapshotFrame(s))
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[*subscriber]bool)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.conn.Close()
	}
	return nil
}

func (h *Hub) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := h.latest.Load()
	if snapshot == nil {
		http.Error(w, "no sample yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := &subscriber{conn: conn}
	h.addSubscriber(sub)
	defer h.removeSubscriber(sub)

	if snapshot := h.latest.Load(); snapshot != nil {
		h.sendFrame(sub, NewSnapshotFrame(*snapshot))
	}
	h.sendFrame(sub, h.settingsFrame())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.logger.Warn("invalid client command", "error", err)
			continue
		}

		switch cmd.Type {
		case "set_include_swap_in_ram":
			if err := h.settings.SetIncludeSwapInRAM(cmd.Value); err != nil {
				h.logger.Warn("settings persist failed", "error", err)
			}
			h.broadcastFrame(h.settingsFrame())

		case "get_settings":
			h.sendFrame(sub, h.settingsFrame())

		default:
			h.logger.Warn("unknown client command", "type", cmd.Type)
		}
	}
}

func (h *Hub) settingsFrame() model.Frame {
	return model.Frame{
		Type:          model.FrameTypeSettings,
		TimestampUnix: time.Now().Unix(),
		Payload:       h.settings.Snapshot(),
	}
}

func (h *Hub) sendFrame(sub *subscriber, frame model.Frame) {
	data, err := EncodeFrame(frame)
	if err != nil {
		return
	}
	sub.send(data)
}

func (h *Hub) broadcastFrame(frame model.Frame) {
	data, err := EncodeFrame(frame)
	if err != nil {
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(data); err != nil {
			h.removeSubscriber(sub)
			sub.conn.Close()
		}
	}
}

func (h *Hub) addSubscriber(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub] = true
}

func (h *Hub) removeSubscriber(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sub)
}
