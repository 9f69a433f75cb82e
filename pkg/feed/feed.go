// Package feed pushes session snapshots to websocket clients.
//
// Every client receives the latest snapshot right after connecting and then
// each snapshot published by the discovery engine, as
//
//	{"type":"sessions","sessions":[...],"current":12,"highWaterMark":40}
//
// The feed is write-only: anything a client sends is read and discarded.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/geotrust-match/matchnode/pkg/contract"
	"github.com/geotrust-match/matchnode/pkg/discovery"
	"github.com/geotrust-match/matchnode/pkg/log"
	"github.com/geotrust-match/matchnode/pkg/metrics"
)

// MessageTypeSessions is the type of every feed message.
const MessageTypeSessions = "sessions"

// Message is the JSON document sent to clients.
type Message struct {
	Type          string             `json:"type"`
	Sessions      []contract.Session `json:"sessions"`
	Current       *uint32            `json:"current,omitempty"`
	HighWaterMark uint32             `json:"highWaterMark"`
	At            time.Time          `json:"at"`
}

// NewMessage renders a snapshot.
func NewMessage(snap discovery.Snapshot) Message {
	sessions := snap.Sessions
	if sessions == nil {
		sessions = []contract.Session{}
	}
	return Message{
		Type:          MessageTypeSessions,
		Sessions:      sessions,
		Current:       snap.Current,
		HighWaterMark: snap.HighWaterMark,
		At:            snap.At,
	}
}

// Source provides the snapshot sent to newly connected clients.
type Source interface {
	Latest() discovery.Snapshot
}

// Config configures a Hub.
type Config struct {
	Source  Source
	Logger  log.Logger
	Metrics *metrics.Metrics

	// WriteTimeout bounds a single write to a client (default: 10s).
	WriteTimeout time.Duration
	// SendBufferSize is the number of messages queued per client before the
	// client is dropped (default: 8).
	SendBufferSize int
	// CheckOrigin validates the origin of incoming requests. All origins are
	// accepted by default.
	CheckOrigin func(r *http.Request) bool
}

// Hub serves the feed and fans snapshots out to connected clients.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a Hub.
func NewHub(cfg Config) (*Hub, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	cfg.Logger = cfg.Logger.WithName("feed")

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 8
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		clients: make(map[string]*client),
	}, nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams snapshots until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.cfg.Logger.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer conn.Close()

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.cfg.SendBufferSize),
		done: make(chan struct{}),
	}
	logger := h.cfg.Logger.WithKV("connectionId", c.id)

	if snap := h.cfg.Source.Latest(); snap.Generation > 0 {
		if data, err := json.Marshal(NewMessage(snap)); err == nil {
			c.send <- data
		}
	}

	h.add(c)
	h.cfg.Metrics.FeedClientConnected()
	logger.Info("feed client connected", "remoteAddr", r.RemoteAddr)
	defer func() {
		h.remove(c.id)
		h.cfg.Metrics.FeedClientDisconnected()
		logger.Info("feed client disconnected")
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go c.readLoop(cancel)

	if err := c.writeLoop(ctx, h.cfg.WriteTimeout, h.cfg.Metrics); err != nil {
		logger.Debug("feed write stopped", "error", err)
	}
}

// Broadcast sends snap to every client. A client whose queue is full is
// disconnected.
func (h *Hub) Broadcast(snap discovery.Snapshot) {
	data, err := json.Marshal(NewMessage(snap))
	if err != nil {
		h.cfg.Logger.Error("failed to encode snapshot", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.cfg.Logger.Warn("feed client too slow, disconnecting", "connectionId", id)
			c.close()
		}
	}
}

// Forward broadcasts every snapshot received on snapshots until ctx is done
// or the channel is closed.
func (h *Hub) Forward(ctx context.Context, snapshots <-chan discovery.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			h.Broadcast(snap)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readLoop discards client messages and cancels when the connection fails.
func (c *client) readLoop(cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop(ctx context.Context, timeout time.Duration, m *metrics.Metrics) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return fmt.Errorf("client dropped")
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				return err
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
			m.RecordFeedMessage()
		}
	}
}
