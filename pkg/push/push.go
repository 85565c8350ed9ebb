package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatline/models"
	tokenstore "chatline/pkg/token"
)

const (
	readLimit    = 1 << 20 // 1MB
	readDeadline = 60 * time.Second
	pingInterval = 45 * time.Second
)

// Envelope is the typed frame the backend pushes over the websocket.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Handler receives each confirmed message event, in delivery order.
type Handler func(models.Message)

var ErrNotConnected = errors.New("push channel not connected")

// Client maintains the process-wide push connection: one websocket dialed
// with the session token, a read loop that forwards new_message events to
// the subscribed handler, and reconnect with capped backoff until Close.
// Frames other than new_message (presence, typing, status) are ignored for
// transcript purposes.
type Client struct {
	wsURL        string
	tokens       *tokenstore.Store
	maxBackoff   time.Duration
	handler      Handler
	handlerMu    sync.RWMutex
	writeMu      sync.Mutex
	conn         *websocket.Conn
	connMu       sync.RWMutex
	cancel       context.CancelFunc
	done         chan struct{}
	startOnce    sync.Once
	shutdownOnce sync.Once
}

func NewClient(wsURL string, tokens *tokenstore.Store, maxBackoff time.Duration) *Client {
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	return &Client{
		wsURL:      wsURL,
		tokens:     tokens,
		maxBackoff: maxBackoff,
		done:       make(chan struct{}),
	}
}

// Subscribe sets the handler for confirmed message events. Must be called
// before Connect; later calls replace the handler.
func (c *Client) Subscribe(h Handler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

// Connect dials the push endpoint and starts the read loop. It returns after
// the first dial attempt; reconnection afterwards is automatic.
func (c *Client) Connect(ctx context.Context) error {
	tok, err := c.tokens.Token()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	conn, err := c.dial(ctx, tok)
	if err != nil {
		cancel()
		return fmt.Errorf("push connect: %w", err)
	}
	c.setConn(conn)

	c.startOnce.Do(func() {
		go c.run(runCtx)
	})
	return nil
}

// Send writes an outbound message frame. Fire-and-forget: a nil return means
// the frame left this client, not that the server stored it. Confirmation
// arrives later as an independent new_message event.
func (c *Client) Send(roomID int64, content string) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame := map[string]any{
		"type": "new_message",
		"data": map[string]any{
			"room_id": roomID,
			"content": content,
		},
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("push send: %w", err)
	}
	return nil
}

// Close tears the connection down and stops reconnecting.
func (c *Client) Close() {
	c.shutdownOnce.Do(func() {
		close(c.done)
		if c.cancel != nil {
			c.cancel()
		}
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
	})
}

func (c *Client) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL+"/ws/"+token, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

func (c *Client) run(ctx context.Context) {
	backoff := time.Second
	for {
		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn != nil {
			c.readLoop(ctx, conn)
			c.setConn(nil)
			backoff = time.Second
		}

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}

		tok, err := c.tokens.Token()
		if err != nil {
			// logged out; stop trying
			log.Printf("[push] no token, stopping reconnect")
			return
		}
		conn, err = c.dial(ctx, tok)
		if err != nil {
			log.Printf("[push] reconnect failed: %v", err)
			continue
		}
		log.Printf("[push] reconnected")
		c.setConn(conn)
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()
	go func() {
		for {
			select {
			case <-pinger.C:
				c.writeMu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				c.writeMu.Unlock()
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("[push] read error: %v", err)
			}
			_ = conn.Close()
			return
		}
		ev, ok, err := DecodeMessageEvent(raw)
		if err != nil {
			log.Printf("[push] bad frame dropped: %v", err)
			continue
		}
		if !ok {
			continue
		}
		c.handlerMu.RLock()
		h := c.handler
		c.handlerMu.RUnlock()
		if h != nil {
			h(ev)
		}
	}
}

// DecodeMessageEvent parses a raw frame. ok is false for frame types this
// client does not consume.
func DecodeMessageEvent(raw []byte) (models.Message, bool, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.Message{}, false, fmt.Errorf("envelope: %w", err)
	}
	if env.Type != "new_message" {
		return models.Message{}, false, nil
	}
	var msg models.Message
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		return models.Message{}, false, fmt.Errorf("new_message data: %w", err)
	}
	if msg.Status == "" {
		msg.Status = models.StateSent
	}
	return msg, true, nil
}
