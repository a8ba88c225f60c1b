package eventhub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"eveswitch/internal/hotkeys"
)

// writeDeadline is the maximum time allowed for a single WebSocket write.
const writeDeadline = 5 * time.Second

// readDeadline allows ~3 missed pings before a connection is considered dead.
const readDeadline = 90 * time.Second

const pingInterval = 30 * time.Second

// maxReadMessageSize limits client messages, which are only subscription requests.
const maxReadMessageSize = 4 * 1024

// sendQueueSize bounds frames buffered per client. A client that falls this
// far behind is disconnected rather than stalling dispatch.
const sendQueueSize = 64

// maxClients caps simultaneous subscribers.
const maxClients = 8

var wsUpgrader = websocket.Upgrader{
	// The listener is loopback-only; origin checks add nothing for local tools.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

// HubOptions configures the WebSocket server.
type HubOptions struct {
	// Addr is the listen address. Use "127.0.0.1:0" for OS-assigned port.
	Addr string
	// State returns the snapshot sent in the hello frame. May be nil.
	State func() State
}

// client is one connected subscriber. Frames are queued on send and written
// by the client's own writer goroutine so broadcasting never blocks.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	// kinds filters events; nil means every kind.
	kinds map[hotkeys.EventKind]bool
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub fans hotkey events out to every connected WebSocket client.
// It implements hotkeys.Sink.
//
// mu protects clients and each client's kinds filter.
type Hub struct {
	opts HubOptions

	mu      sync.RWMutex
	clients map[*client]struct{}

	listener net.Listener
	server   *http.Server
	url      string // "ws://127.0.0.1:<port>/ws", set after Start

	closeOnce sync.Once
}

// NewHub creates a Hub with the given options.
// The hub is not started until Start is called.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{
		opts:    opts,
		clients: make(map[*client]struct{}),
	}
}

// Start begins listening on the configured address. When ctx is cancelled,
// active handlers receive cancellation; the server itself must be stopped
// via Stop.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return fmt.Errorf("eventhub: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("eventhub: listen: %w", err)
	}
	h.listener = ln
	h.url = fmt.Sprintf("ws://%s/ws", ln.Addr().String())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)

	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("[ERROR-WS] server error", "error", serveErr)
		}
	}()

	slog.Info("[DEBUG-WS] event stream started", "url", h.url)
	return nil
}

// Stop shuts down the HTTP server and disconnects every client.
// Safe to call multiple times.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		clients := h.clients
		h.clients = make(map[*client]struct{})
		h.mu.Unlock()

		for c := range clients {
			c.close()
			closeConn(c.conn, "hub stop")
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("eventhub: shutdown: %w", err)
			}
		}

		slog.Info("[DEBUG-WS] event stream stopped")
	})
	return stopErr
}

// URL returns the WebSocket URL, or "" before Start.
func (h *Hub) URL() string {
	return h.url
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleEvent broadcasts ev to every client subscribed to its kind.
func (h *Hub) HandleEvent(ev hotkeys.Event) {
	frame, err := encodeEvent(ev)
	if err != nil {
		slog.Warn("[WARN-WS] failed to encode event", "kind", ev.Kind, "error", err)
		return
	}
	h.broadcast(frame, func(c *client) bool {
		return c.kinds == nil || c.kinds[ev.Kind]
	})
}

// BroadcastLog forwards a log record to every client.
func (h *Hub) BroadcastLog(level slog.Level, message string) {
	frame, err := encodeLog(level.String(), message)
	if err != nil {
		return
	}
	h.broadcast(frame, nil)
}

func (h *Hub) broadcast(frame []byte, want func(*client) bool) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if want != nil && !want(c) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("[WARN-WS] client send queue full, disconnecting", "remoteAddr", c.conn.RemoteAddr())
		h.remove(c)
		closeConn(c.conn, "send queue full")
	}
}

// remove drops c from the client set and stops its writer. Returns true if
// c was still registered.
func (h *Hub) remove(c *client) bool {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	return ok
}

// closeConn closes a WebSocket connection. Double-close is expected when
// several goroutines observe the same failure.
func closeConn(conn *websocket.Conn, reason string) {
	if closeErr := conn.Close(); closeErr != nil {
		slog.Debug("[DEBUG-WS] connection close", "reason", reason, "error", closeErr)
	}
}

// handleWS upgrades HTTP to WebSocket and runs the read pump.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	full := len(h.clients) >= maxClients
	h.mu.RUnlock()
	if full {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[WARN-WS] upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[WARN-WS] SetReadDeadline failed on new connection", "error", err)
		closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	c := &client{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}

	var st State
	if h.opts.State != nil {
		st = h.opts.State()
	}
	if hello, encErr := encodeHello(st); encErr == nil {
		c.send <- hello
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("[DEBUG-WS] client connected", "remoteAddr", conn.RemoteAddr())

	go h.writeLoop(c)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] eventhub handleWS recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
		h.remove(c)
		closeConn(conn, "read pump exit")
		slog.Info("[DEBUG-WS] client disconnected")
	}()

	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[WARN-WS] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var cm clientMsg
		if jsonErr := json.Unmarshal(msg, &cm); jsonErr != nil {
			slog.Debug("[DEBUG-WS] invalid JSON from client", "error", jsonErr)
			h.reply(c, fmt.Sprintf("invalid JSON: %s", jsonErr))
			continue
		}
		if problem := h.applySubscription(c, cm); problem != "" {
			h.reply(c, problem)
		}
	}
}

// writeLoop owns all writes to c.conn: queued frames and keepalive pings.
func (h *Hub) writeLoop(c *client) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] eventhub writeLoop recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.remove(c)
			closeConn(c.conn, "writeLoop panic recovery")
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		var (
			msgType = websocket.TextMessage
			payload []byte
		)
		select {
		case <-c.done:
			return
		case payload = <-c.send:
		case <-ticker.C:
			msgType = websocket.PingMessage
		}

		if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
			slog.Warn("[WARN-WS] SetWriteDeadline failed, closing connection", "error", err)
			h.remove(c)
			closeConn(c.conn, "SetWriteDeadline failure")
			return
		}
		if err := c.conn.WriteMessage(msgType, payload); err != nil {
			slog.Debug("[DEBUG-WS] write failed, closing connection", "error", err)
			h.remove(c)
			closeConn(c.conn, "write error")
			return
		}
	}
}

// applySubscription updates c's kind filter. Returns a problem description
// for the client, or "".
func (h *Hub) applySubscription(c *client, msg clientMsg) string {
	switch msg.Action {
	case subscribeAllAction:
		h.mu.Lock()
		c.kinds = nil
		h.mu.Unlock()
		return ""
	case subscribeAction:
		kinds := make(map[hotkeys.EventKind]bool, len(msg.Kinds))
		var unknown []string
		for _, name := range msg.Kinds {
			kind, ok := hotkeys.ParseEventKind(name)
			if !ok {
				unknown = append(unknown, name)
				continue
			}
			kinds[kind] = true
		}
		h.mu.Lock()
		c.kinds = kinds
		h.mu.Unlock()
		slog.Debug("[DEBUG-WS] subscription updated", "kinds", len(kinds))
		if len(unknown) > 0 {
			return fmt.Sprintf("unknown event kinds: %v", unknown)
		}
		return ""
	default:
		return fmt.Sprintf("unknown action %q", msg.Action)
	}
}

func (h *Hub) reply(c *client, message string) {
	frame, err := encodeError(message)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		slog.Debug("[DEBUG-WS] dropping error reply, send queue full")
	}
}
