package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ALLiDoizCode/crosstown/internal/metrics"
	"github.com/ALLiDoizCode/crosstown/nostr"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// WSClient is the default relay Client, a single persistent WebSocket
// connection speaking the four message types in spec.md §6.1: REQ, EVENT,
// EOSE, CLOSE. Grounded on the teacher's WSTransport (dial, read loop,
// mutex-guarded write) in pkg/agent/transport/websocket/client.go.
type WSClient struct {
	url          string
	dialTimeout  time.Duration
	writeTimeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn

	subMu sync.Mutex
	subs  map[string]*wsSubscription
}

// NewWSClient creates a relay client for the given WebSocket URL. The
// connection is opened lazily on the first Subscribe/Publish call.
func NewWSClient(url string) *WSClient {
	return &WSClient{
		url:          url,
		dialTimeout:  10 * time.Second,
		writeTimeout: 10 * time.Second,
		subs:         make(map[string]*wsSubscription),
	}
}

func (c *WSClient) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	dialer := &websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, xerrors.NewRelayUnavailable(err, "dial %s", c.url)
	}
	c.conn = conn
	go c.readLoop(conn)
	return conn, nil
}

func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.closeAllSubs()
			return
		}
		c.dispatch(data)
	}
}

func (c *WSClient) dispatch(data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 2 {
		return
	}
	var msgType string
	if err := json.Unmarshal(frame[0], &msgType); err != nil {
		return
	}
	switch msgType {
	case "EVENT":
		if len(frame) < 3 {
			return
		}
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		var ev nostr.Event
		if err := json.Unmarshal(frame[2], &ev); err != nil {
			return
		}
		c.subMu.Lock()
		sub, ok := c.subs[subID]
		c.subMu.Unlock()
		if ok {
			sub.deliver(&ev)
		}
	case "EOSE":
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		c.subMu.Lock()
		sub, ok := c.subs[subID]
		c.subMu.Unlock()
		if ok {
			sub.closeEOSE()
		}
	}
}

func (c *WSClient) closeAllSubs() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subs {
		sub.closeEvents()
	}
	c.subs = make(map[string]*wsSubscription)
	metrics.SubscriptionReconnects.Inc()
}

// Subscribe opens a REQ subscription and returns a Subscription that
// delivers matching events until Unsubscribe is called.
func (c *WSClient) Subscribe(ctx context.Context, filter Filter) (Subscription, error) {
	conn, err := c.ensureConn(ctx)
	if err != nil {
		return nil, err
	}
	subID := uuid.NewString()
	sub := newWSSubscription(c, subID)

	c.subMu.Lock()
	c.subs[subID] = sub
	c.subMu.Unlock()

	frame := []interface{}{"REQ", subID, filter}
	if err := c.writeJSON(conn, frame); err != nil {
		c.subMu.Lock()
		delete(c.subs, subID)
		c.subMu.Unlock()
		return nil, xerrors.NewRelayUnavailable(err, "send REQ")
	}
	return sub, nil
}

// Publish sends a signed event to the relay as an EVENT message.
func (c *WSClient) Publish(ctx context.Context, event *nostr.Event) error {
	conn, err := c.ensureConn(ctx)
	if err != nil {
		return err
	}
	frame := []interface{}{"EVENT", event}
	if err := c.writeJSON(conn, frame); err != nil {
		return xerrors.NewRelayUnavailable(err, "publish event")
	}
	return nil
}

func (c *WSClient) writeJSON(conn *websocket.Conn, v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("relay: marshal frame: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (c *WSClient) sendClose(subID string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return c.writeJSON(conn, []interface{}{"CLOSE", subID})
}

type wsSubscription struct {
	client *WSClient
	id     string
	events chan *nostr.Event
	eose   chan struct{}

	closeOnce sync.Once
	eoseOnce  sync.Once
}

func newWSSubscription(client *WSClient, id string) *wsSubscription {
	return &wsSubscription{
		client: client,
		id:     id,
		events: make(chan *nostr.Event, 64),
		eose:   make(chan struct{}),
	}
}

func (s *wsSubscription) deliver(ev *nostr.Event) {
	select {
	case s.events <- ev:
	default:
		// Slow consumer: drop rather than block the read loop, matching the
		// teacher's best-effort delivery posture for non-critical streams.
	}
}

func (s *wsSubscription) closeEOSE() {
	s.eoseOnce.Do(func() { close(s.eose) })
}

func (s *wsSubscription) closeEvents() {
	s.closeOnce.Do(func() { close(s.events) })
}

func (s *wsSubscription) Events() <-chan *nostr.Event { return s.events }
func (s *wsSubscription) EOSE() <-chan struct{}       { return s.eose }

func (s *wsSubscription) Unsubscribe() error {
	s.client.subMu.Lock()
	delete(s.client.subs, s.id)
	s.client.subMu.Unlock()
	return s.client.sendClose(s.id)
}
