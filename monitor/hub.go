package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ardnew/maghand/pkg"
)

// Message types sent to websocket clients.
const (
	TypeHello = "hello"
	TypeKey   = "key"
	TypeLog   = "log"
)

// envelope is the frame sent to clients: {type, ts, data}.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// logData is the payload of a "log" frame.
type logData struct {
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Msg       string         `json:"msg"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// HubConfig sizes the hub queues. Zero values use defaults.
type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	SendBuf int
	// BroadcastBuf is the hub inbound queue size.
	BroadcastBuf int
}

// Hub tracks websocket clients and fans frames out to them. A client whose
// queue is full is disconnected. Once Run returns the hub accepts no new
// clients.
type Hub struct {
	broadcast chan []byte

	mu      sync.Mutex
	clients map[*Client]struct{}
	stopped bool
	sendBuf int

	dropped atomic.Uint64
}

// NewHub creates a hub. Call Run to start it.
func NewHub(cfg HubConfig) *Hub {
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = 32
	}
	if cfg.BroadcastBuf <= 0 {
		cfg.BroadcastBuf = 128
	}
	return &Hub{
		broadcast: make(chan []byte, cfg.BroadcastBuf),
		clients:   make(map[*Client]struct{}),
		sendBuf:   cfg.SendBuf,
	}
}

// Run fans out broadcasts until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	pkg.LogInfo(pkg.ComponentMonitor, "hub starting")
	for {
		select {
		case <-ctx.Done():
			pkg.LogInfo(pkg.ComponentMonitor, "hub stopping")
			h.closeAll()
			return

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
				h.remove(c, "slow client")
			}
		}
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of frames lost to a full broadcast queue.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// add registers c. It returns false if the hub has stopped.
func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	pkg.LogInfo(pkg.ComponentMonitor, "client registered", "remote", c.remote, "clients", n)
	return true
}

func (h *Hub) remove(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		pkg.LogInfo(pkg.ComponentMonitor, "client disconnected", "remote", c.remote, "reason", reason, "clients", n)
	}
}

// BroadcastBytes queues a serialized frame. It never blocks; the frame is
// dropped if the queue is full.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		pkg.LogWarn(pkg.ComponentMonitor, "broadcast queue full", "bytes", len(msg))
	}
}

// Publish wraps a record in an envelope and broadcasts it. Key transitions
// are sent as "key" frames and everything else as "log" frames.
func (h *Hub) Publish(rec Record) error {
	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	env := envelope{Type: TypeLog, Ts: &ts}
	if ev, ok := rec.KeyEvent(); ok {
		env.Type = TypeKey
		env.Data = ev
	} else {
		env.Data = logData{
			Level:     rec.Level,
			Component: rec.Component,
			Msg:       rec.Msg,
			Attrs:     rec.Attrs,
		}
	}
	msg, err := json.Marshal(env)
	if err != nil {
		return err
	}
	h.BroadcastBytes(msg)
	return nil
}

// Client is one websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	remote string
	once   sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, remote string) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.sendBuf),
		remote: remote,
	}
}

// close ends the connection and stops the write pump. Safe to call twice.
func (c *Client) close() {
	c.once.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
	})
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

func closeStatus(err error) (int, string, bool) {
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
		pkg.LogInfo(pkg.ComponentMonitor, pump+" closed", "remote", c.remote, "code", code, "reason", text)
		return
	}
	pkg.LogInfo(pkg.ComponentMonitor, pump+" exiting", "remote", c.remote, "error", err)
}

// writePump drains the send queue into the connection and pings it.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("write pump", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("write pump", err)
				return
			}
		}
	}
}

// readPump discards inbound frames so control frames are handled and a
// disconnect is noticed, then removes the client.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("read pump", err)
			c.hub.remove(c, "read closed")
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		pkg.LogWarn(pkg.ComponentMonitor, "websocket upgrade failed", "error", err)
		return
	}
	c := newClient(h, conn, r.RemoteAddr)

	now := time.Now().UTC()
	hello, _ := json.Marshal(envelope{Type: TypeHello, Ts: &now})
	c.send <- hello
	if !h.add(c) {
		pkg.LogWarn(pkg.ComponentMonitor, "hub stopped, rejecting client", "remote", c.remote)
		c.close()
		return
	}

	// The pumps outlive the request context.
	go c.writePump()
	go c.readPump()
}
