package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const heartbeatInterval = 30 * time.Second

// RealtimeClient handles Supabase Realtime (Phoenix channel) subscriptions.
type RealtimeClient struct {
	mu       sync.Mutex
	writeMu  sync.Mutex
	url      string
	conn     *websocket.Conn
	channels map[string]*Channel
	handlers map[string]map[int]EventHandler
	nextID   int
	done     chan struct{}
	ref      int
}

// EventHandler handles realtime events.
type EventHandler func(event *RealtimeEvent)

// RealtimeEvent is one Phoenix message.
type RealtimeEvent struct {
	Event   string          `json:"event"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// Change is the payload of a postgres change event.
type Change struct {
	Type      string         `json:"type"`
	Schema    string         `json:"schema"`
	Table     string         `json:"table"`
	Record    map[string]any `json:"record"`
	OldRecord map[string]any `json:"old_record"`
}

// Change decodes the payload as a postgres change.
func (e *RealtimeEvent) Change() (*Change, error) {
	var c Change
	if err := json.Unmarshal(e.Payload, &c); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	if c.Type == "" {
		c.Type = e.Event
	}
	return &c, nil
}

// ID returns the primary key carried by the change, preferring the new row.
func (c *Change) ID() string {
	for _, row := range []map[string]any{c.Record, c.OldRecord} {
		if v, ok := row["id"]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Channel is a joined (or joinable) topic.
type Channel struct {
	client  *RealtimeClient
	topic   string
	joined  bool
	joinRef string
}

// Topic returns the channel topic.
func (c *Channel) Topic() string { return c.topic }

// NewRealtimeClient creates a new realtime client for the project at supabaseURL.
func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	wsURL := strings.TrimSuffix(supabaseURL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	wsURL += "/realtime/v1/websocket?apikey=" + url.QueryEscape(apiKey) + "&vsn=1.0.0"

	return &RealtimeClient{
		url:      wsURL,
		channels: make(map[string]*Channel),
		handlers: make(map[string]map[int]EventHandler),
	}
}

// Connect establishes the WebSocket connection.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})

	go r.readLoop(conn, r.done)
	go r.heartbeat(r.done)
	return nil
}

// Disconnect closes the WebSocket connection. Channels must be re-joined after
// a new Connect.
func (r *RealtimeClient) Disconnect() error {
	r.mu.Lock()
	conn := r.conn
	if conn == nil {
		r.mu.Unlock()
		return nil
	}
	close(r.done)
	r.conn = nil
	for _, ch := range r.channels {
		ch.joined = false
	}
	r.mu.Unlock()

	r.writeMu.Lock()
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	r.writeMu.Unlock()
	conn.Close()
	if err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

// Channel returns or creates a channel.
func (r *RealtimeClient) Channel(topic string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[topic]; ok {
		return ch
	}
	ch := &Channel{client: r, topic: topic}
	r.channels[topic] = ch
	return ch
}

func (r *RealtimeClient) send(msg map[string]any) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("realtime: not connected")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (r *RealtimeClient) nextRef() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ref++
	return strconv.Itoa(r.ref)
}

// Subscribe joins the channel.
func (c *Channel) Subscribe(ctx context.Context) error {
	c.client.mu.Lock()
	if c.joined {
		c.client.mu.Unlock()
		return nil
	}
	c.client.mu.Unlock()

	ref := c.client.nextRef()
	if err := c.client.send(map[string]any{
		"topic":    c.topic,
		"event":    "phx_join",
		"payload":  map[string]any{},
		"ref":      ref,
		"join_ref": ref,
	}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	c.client.mu.Lock()
	c.joined = true
	c.joinRef = ref
	c.client.mu.Unlock()
	return nil
}

// Unsubscribe leaves the channel and drops its handlers.
func (c *Channel) Unsubscribe(ctx context.Context) error {
	c.client.mu.Lock()
	joined, joinRef := c.joined, c.joinRef
	c.client.mu.Unlock()

	if joined {
		if err := c.client.send(map[string]any{
			"topic":    c.topic,
			"event":    "phx_leave",
			"payload":  map[string]any{},
			"ref":      c.client.nextRef(),
			"join_ref": joinRef,
		}); err != nil {
			return fmt.Errorf("send leave: %w", err)
		}
	}

	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	c.joined = false
	delete(c.client.channels, c.topic)
	prefix := c.topic + ":"
	for key := range c.client.handlers {
		if strings.HasPrefix(key, prefix) {
			delete(c.client.handlers, key)
		}
	}
	return nil
}

// On registers an event handler and returns a function removing it.
func (c *Channel) On(event string, handler EventHandler) func() {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()

	key := c.topic + ":" + event
	if c.client.handlers[key] == nil {
		c.client.handlers[key] = make(map[int]EventHandler)
	}
	c.client.nextID++
	id := c.client.nextID
	c.client.handlers[key][id] = handler

	return func() {
		c.client.mu.Lock()
		defer c.client.mu.Unlock()
		delete(c.client.handlers[key], id)
	}
}

func (r *RealtimeClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case <-done:
			return
		default:
		}

		var event RealtimeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		r.dispatch(&event)
	}
}

func (r *RealtimeClient) dispatch(event *RealtimeEvent) {
	r.mu.Lock()
	set := r.handlers[event.Topic+":"+event.Event]
	handlers := make([]EventHandler, 0, len(set))
	for _, h := range set {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (r *RealtimeClient) heartbeat(done chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = r.send(map[string]any{
				"topic":   "phoenix",
				"event":   "heartbeat",
				"payload": map[string]any{},
				"ref":     r.nextRef(),
			})
		}
	}
}

// =============================================================================
// Postgres Changes Subscription
// =============================================================================

// PostgresChangesConfig configures postgres changes subscription.
type PostgresChangesConfig struct {
	Events []string // INSERT, UPDATE, DELETE; empty means all three
	Schema string
	Table  string
	Filter string // optional, e.g. "user_id=eq.42"
}

// SubscribeToPostgresChanges joins the table topic and routes its changes to
// handler. The returned channel's Unsubscribe stops delivery.
func (r *RealtimeClient) SubscribeToPostgresChanges(ctx context.Context, cfg PostgresChangesConfig, handler EventHandler) (*Channel, error) {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	events := cfg.Events
	if len(events) == 0 {
		events = []string{"INSERT", "UPDATE", "DELETE"}
	}

	topic := fmt.Sprintf("realtime:%s:%s", cfg.Schema, cfg.Table)
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	ch := r.Channel(topic)
	for _, ev := range events {
		ch.On(strings.ToUpper(ev), handler)
	}

	if err := ch.Subscribe(ctx); err != nil {
		_ = ch.Unsubscribe(ctx)
		return nil, err
	}
	return ch, nil
}
