package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scratchd/turntable"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
// Renderers (a browser page drawing the record) connect here. Outbound:
//   - "state_init" with a StateSnapshot right after connecting
//   - "transform", "playback", "sample_changed" as the deck changes
//
// Inbound text frames are event envelopes (see events.go), so a renderer can
// forward its own pointer stream, report its layout and pause/resume.
//
// Messages are JSON text frames with an envelope: {type, ts, data}.
// Slow clients are disconnected when their send buffer fills.
//
// ============================================================================

// Outbound message types.
const (
	wsTypeStateInit     = "state_init"
	wsTypeTransform     = "transform"
	wsTypePlayback      = "playback"
	wsTypeSampleChanged = "sample_changed"
)

// wsPlaybackData is the `data` payload of "playback".
type wsPlaybackData struct {
	Kind     string            `json:"kind"`
	Velocity float64           `json:"velocity"`
	Sample   string            `json:"sample"`
	Clip     turntable.ClipRef `json:"clip"`
	Pitch    float64           `json:"pitch"`
}

// wsSampleChangedData is the `data` payload of "sample_changed".
type wsSampleChangedData struct {
	Name string `json:"name"`
}

// wsOutboundEvent is a pre-typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalEnvelope(ev wsOutboundEvent) ([]byte, error) {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size (default 64).
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size (default 256).
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 64
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 256
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.closeSend()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send tells writePump to exit.
		c.closeSend()
		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// BroadcastBytes enqueues a serialized frame. It drops the frame when the
// hub queue is full.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once

	// Inbound events are forwarded here; nil makes the client read-only.
	events chan<- Event

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, events chan<- Event, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 64
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		events:     events,
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

const (
	writeWait      = 5 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 20 * time.Second
	maxInboundSize = 4096
)

// wsTransformCoalesceWindow caps transform frames to about one per display frame.
const wsTransformCoalesceWindow = 16 * time.Millisecond

// closeStatus extracts the websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes queued frames and keepalive pings. It exits on write
// error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump reads inbound frames and forwards valid events. It exits on read
// error, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	defer func() {
		if c.hub != nil {
			c.hub.unregister <- c
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.logExit("readPump", err)
			return
		}
		// Any inbound traffic proves the peer is alive.
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		c.forward(ctx, msg)
	}
}

// forward decodes one inbound frame and hands it to the daemon loop,
// waiting for queue space until ctx ends.
func (c *Client) forward(ctx context.Context, msg []byte) {
	if c.events == nil {
		return
	}
	ev, err := UnmarshalEvent(msg)
	if err != nil {
		c.logger.Debug("ws ignoring inbound message", "remote_addr", c.remoteAddr, "error", err)
		return
	}
	sendEvent(ctx, c.events, ev)
}

// ============================================================================
// HTTP Handler + server wiring helpers
// ============================================================================

type Server struct {
	logger *slog.Logger
	hub    *Hub

	// Receives client input and snapshot requests.
	events chan<- Event
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the WS server components. Register it on a mux, start
// Hub().Run(ctx) and RunBroadcaster.
func NewServer(logger *slog.Logger, events chan<- Event, cfg ServerConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg.Hub),
		events: events,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register installs the websocket handler at path and a JSON snapshot
// endpoint at /state.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
	mux.HandleFunc("GET /state", s.handleState)
}

var upgrader = websocket.Upgrader{
	// Renderers are served from arbitrary local origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleState writes the current snapshot as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := requestSnapshot(r.Context(), s.events, snapshotTimeout)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Debug("state response failed", "error", err)
	}
}

// handleStateWS upgrades and registers a client, then sends state_init.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, s.events, r.RemoteAddr, s.logger)
	s.hub.register <- client

	// The pumps must outlive this handler: net/http cancels r.Context() as
	// soon as we return.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	if s.events == nil {
		return
	}

	snap, err := requestSnapshot(r.Context(), s.events, snapshotTimeout)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", err)
		}
		return
	}

	initMsg, err := marshalEnvelope(wsOutboundEvent{Type: wsTypeStateInit, Data: snap, At: snap.At})
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		return
	}
	select {
	case client.send <- initMsg:
	default:
		s.hub.unregister <- client
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster marshals broadcasts from src and fans them out via hub.
// Transform updates are coalesced (latest wins) so a fast scratch does not
// flood clients; other events are sent immediately, in order.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var (
		pending *wsOutboundEvent
		flushC  <-chan time.Time
	)

	send := func(ev wsOutboundEvent) {
		msg, err := marshalEnvelope(ev)
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushPending := func() {
		if pending != nil {
			send(*pending)
			pending = nil
		}
		flushC = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushPending()
			return

		case <-flushC:
			flushPending()

		case b, ok := <-src:
			if !ok {
				flushPending()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			if ev.Type == wsTypeTransform {
				pending = &ev
				if flushC == nil {
					flushC = time.After(wsTransformCoalesceWindow)
				}
				continue
			}

			flushPending()
			send(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastTransform:
		return wsOutboundEvent{Type: wsTypeTransform, Data: ev.Transform, At: ev.At}, true

	case BroadcastPlayback:
		pb := ev.Playback
		return wsOutboundEvent{
			Type: wsTypePlayback,
			Data: wsPlaybackData{
				Kind:     pb.Command.Kind.String(),
				Velocity: pb.Command.Velocity,
				Sample:   pb.Sample,
				Clip:     pb.Clip,
				Pitch:    pb.Pitch,
			},
			At: ev.At,
		}, true

	case BroadcastSampleChanged:
		return wsOutboundEvent{Type: wsTypeSampleChanged, Data: wsSampleChangedData{Name: ev.Name}, At: ev.At}, true

	default:
		return wsOutboundEvent{}, false
	}
}
