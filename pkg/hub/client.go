package hub

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/tidwall/gjson"
)

const (
	writeWait = 10 * time.Second

	// DefaultPingPeriod is the keepalive cadence when none is configured.
	// A client that misses two pings in a row is disconnected.
	DefaultPingPeriod = 30 * time.Second

	// maxMessageSize caps inbound frames; clients only send pongs and
	// subscription updates
	maxMessageSize = 4 * 1024

	sendBuffer = 256
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTopics limits delivery to events of the given types. Empty names are
// ignored; no topics means every event.
func WithTopics(topics ...string) ClientOption {
	return func(c *Client) { c.subscribe(topics) }
}

// WithPingPeriod sets the keepalive cadence.
func WithPingPeriod(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pingPeriod = d
		}
	}
}

// Client is one event stream connection. It receives every published event
// whose type it subscribed to, plus untyped messages.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan Message
	pingPeriod time.Duration

	mu     sync.RWMutex
	topics map[string]struct{}
}

// NewClient creates a client and registers it with the hub. It returns nil
// when the hub has stopped.
func NewClient(hub *Hub, conn *websocket.Conn, opts ...ClientOption) *Client {
	client := newClient(hub, conn, sendBuffer, opts...)
	select {
	case hub.register <- client:
		return client
	case <-hub.done:
		return nil
	}
}

func newClient(hub *Hub, conn *websocket.Conn, buf int, opts ...ClientOption) *Client {
	c := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan Message, buf),
		pingPeriod: DefaultPingPeriod,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wants reports whether an event of the given type should be delivered.
func (c *Client) Wants(topic string) bool {
	if topic == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.topics) == 0 {
		return true
	}
	_, ok := c.topics[topic]
	return ok
}

// Topics returns the subscribed event types in no particular order.
func (c *Client) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

func (c *Client) subscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if c.topics == nil {
			c.topics = make(map[string]struct{})
		}
		c.topics[t] = struct{}{}
	}
}

func (c *Client) unsubscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.topics, strings.TrimSpace(t))
	}
}

// control applies a subscription frame:
//
//	{"subscribe": ["hit"], "unsubscribe": ["motion_finish"]}
//
// "*" in unsubscribe clears the filter. Frames that are not JSON objects
// are ignored.
func (c *Client) control(frame []byte) bool {
	if !gjson.ValidBytes(frame) {
		return false
	}
	doc := gjson.ParseBytes(frame)
	if !doc.IsObject() {
		return false
	}

	names := func(key string) []string {
		var out []string
		doc.Get(key).ForEach(func(_, v gjson.Result) bool {
			out = append(out, v.String())
			return true
		})
		return out
	}

	drop := names("unsubscribe")
	for _, t := range drop {
		if t == "*" {
			c.mu.Lock()
			c.topics = nil
			c.mu.Unlock()
			drop = nil
			break
		}
	}
	c.unsubscribe(drop)
	c.subscribe(names("subscribe"))
	return true
}

// Run starts the pumps and blocks until the connection closes.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump consumes subscription frames and pongs until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	pongWait := 2 * c.pingPeriod
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		if c.control(data) {
			c.hub.logger.Debug("client subscription changed", "topics", c.Topics())
		}
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			wsType := websocket.TextMessage
			if message.Type == BinaryMessage {
				wsType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(wsType, message.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
