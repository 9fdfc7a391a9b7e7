// Package stream pushes live prices and portfolio updates to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/tradefolio/tracker/internal/events"
	"github.com/tradefolio/tracker/internal/modules/portfolio"
	"github.com/tradefolio/tracker/internal/modules/users"
)

const (
	sendBufferSize      = 32
	writeTimeout        = 10 * time.Second
	maxSymbolsPerClient = 50
	maxMessageBytes     = 4096
)

// Authenticator resolves a bearer token to a user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*users.User, error)
}

// PerformanceSource computes portfolio summaries for portfolio_update messages
type PerformanceSource interface {
	Performance(ctx context.Context, userID int64) (*portfolio.Performance, error)
}

// Config configures the hub
type Config struct {
	// OriginPatterns restricts browser origins; empty allows any origin
	OriginPatterns []string
}

type client struct {
	id      string
	userID  int64
	conn    *websocket.Conn
	send    chan []byte
	symbols map[string]struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// enqueue queues msg without blocking. Messages to a slow client are dropped.
func (c *client) enqueue(msg []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub tracks websocket clients and their symbol subscriptions
type Hub struct {
	auth        Authenticator
	performance PerformanceSource
	cfg         Config
	log         zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a hub. auth and performance may be nil, which disables
// token authentication and portfolio updates respectively.
func NewHub(auth Authenticator, performance PerformanceSource, cfg Config, log zerolog.Logger) *Hub {
	return &Hub{
		auth:        auth,
		performance: performance,
		cfg:         cfg,
		log:         log.With().Str("component", "stream_hub").Logger(),
		clients:     make(map[string]*client),
	}
}

type inboundMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
// An optional ?token= query parameter authenticates the socket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if token := r.URL.Query().Get("token"); token != "" {
		if h.auth == nil {
			http.Error(w, users.ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}
		user, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			h.log.Debug().Err(err).Msg("Rejected websocket token")
			http.Error(w, users.ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}
		userID = user.ID
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns}
	if len(opts.OriginPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	c := &client{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		symbols: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	h.register(c)
	defer h.unregister(c)

	go h.writeLoop(c)

	h.sendTo(c, map[string]interface{}{
		"type":          "connected",
		"client_id":     c.id,
		"authenticated": userID != 0,
	})

	h.readLoop(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug().Str("client_id", c.id).Int64("user_id", c.userID).Int("clients", total).Msg("Websocket client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	total := len(h.clients)
	h.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	h.log.Debug().Str("client_id", c.id).Int("clients", total).Msg("Websocket client disconnected")
}

func (h *Hub) readLoop(c *client) {
	for {
		msgType, data, err := c.conn.Read(c.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && c.ctx.Err() == nil {
				h.log.Debug().Err(err).Str("client_id", c.id).Msg("Websocket read failed")
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendTo(c, map[string]interface{}{"type": "error", "message": "Invalid JSON message"})
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (h *Hub) handleMessage(c *client, msg inboundMessage) {
	switch msg.Type {
	case "subscribe":
		symbols := normalizeSymbols(msg.Symbols)
		h.mu.Lock()
		c.symbols = make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			c.symbols[s] = struct{}{}
		}
		h.mu.Unlock()
		h.sendTo(c, map[string]interface{}{"type": "subscribed", "symbols": symbols})
	case "unsubscribe":
		symbols := normalizeSymbols(msg.Symbols)
		h.mu.Lock()
		for _, s := range symbols {
			delete(c.symbols, s)
		}
		h.mu.Unlock()
		h.sendTo(c, map[string]interface{}{"type": "unsubscribed", "symbols": symbols})
	case "ping":
		h.sendTo(c, map[string]interface{}{"type": "pong"})
	default:
		h.sendTo(c, map[string]interface{}{"type": "error", "message": "Unknown message type"})
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Str("client_id", c.id).Msg("Websocket write failed")
				c.cancel()
				return
			}
		}
	}
}

func (h *Hub) sendTo(c *client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode websocket message")
		return
	}
	if !c.enqueue(data) {
		h.log.Debug().Str("client_id", c.id).Msg("Dropped websocket message")
	}
}

// Symbols returns every symbol with at least one subscriber, sorted
func (h *Hub) Symbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := make(map[string]struct{})
	for _, c := range h.clients {
		for s := range c.symbols {
			set[s] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(set))
	for s := range set {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastPrice sends a price_update for symbol to its subscribers.
// Returns the number of clients the update was queued for.
func (h *Hub) BroadcastPrice(symbol string, quote interface{}) int {
	data, err := json.Marshal(map[string]interface{}{
		"type":   "price_update",
		"symbol": symbol,
		"data":   quote,
	})
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to encode price update")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, c := range h.clients {
		if _, ok := c.symbols[symbol]; ok && c.enqueue(data) {
			sent++
		}
	}
	return sent
}

// NotifyPortfolio sends a portfolio_update to every authenticated socket of userID
func (h *Hub) NotifyPortfolio(ctx context.Context, userID int64, reason string) {
	if h.performance == nil || userID == 0 {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0)
	for _, c := range h.clients {
		if c.userID == userID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	perf, err := h.performance.Performance(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to compute portfolio update")
		return
	}

	for _, c := range targets {
		h.sendTo(c, map[string]interface{}{
			"type":   "portfolio_update",
			"reason": reason,
			"data":   perf,
		})
	}
}

// SubscribeToLedger pushes portfolio updates whenever a user's ledger changes
func (h *Hub) SubscribeToLedger(bus *events.Bus) {
	handler := func(e *events.Event) {
		userID, ok := events.Int64Field(e.Data, "user_id")
		if !ok {
			return
		}
		// bus handlers must not block
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			defer cancel()
			h.NotifyPortfolio(ctx, userID, string(e.Type))
		}()
	}
	bus.Subscribe(events.TransactionApplied, handler)
	bus.Subscribe(events.TransactionReversed, handler)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		c.cancel()
	}
}

func normalizeSymbols(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	symbols := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
		if len(symbols) == maxSymbolsPerClient {
			break
		}
	}
	return symbols
}
