package realtime

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/dukerupert/studyhall/internal/auth"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client represents a single WebSocket connection. The identity is verified
// once at the handshake and attached for the connection's lifetime.
type Client struct {
	gateway  *Gateway
	conn     *ws.Conn
	send     chan []byte
	connID   string
	identity auth.Identity

	// sessionID is the room this connection currently occupies, 0 when not
	// joined. Only the read-pump goroutine touches it.
	sessionID int64
}

func newClient(g *Gateway, conn *ws.Conn, identity auth.Identity) *Client {
	return &Client{
		gateway:  g,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		connID:   uuid.NewString(),
		identity: identity,
	}
}

// Run starts the write pump and runs the read pump. It blocks until the
// connection closes, then leaves whatever room the connection was in.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)

	c.gateway.disconnect(c)
}

// deliver queues an event for this connection only. Drops when the buffer is
// full, same as room broadcasts.
func (c *Client) deliver(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		c.gateway.logger.Error("marshal direct reply", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump parses inbound events and dispatches them. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var ev inboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.gateway.logger.Debug("malformed client event", "conn", c.connID, "error", err)
			continue
		}
		c.gateway.dispatch(c, ev)
	}
}

// writePump drains the send channel and writes events to the WebSocket. It
// also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
