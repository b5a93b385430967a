// internal/realtime/client.go

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/securestore"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// ErrNoEndpoint is returned by Run when no realtime URL is configured
var ErrNoEndpoint = errors.New("realtime endpoint not configured")

// Client keeps a websocket open to the backend and feeds events to a Handler
type Client struct {
	url     string
	tokens  securestore.Store
	handler Handler
	dialer  *websocket.Dialer
	logger  *zap.Logger

	mu        sync.Mutex
	connected bool
}

func NewClient(url string, tokens securestore.Store, handler Handler, log *zap.Logger) *Client {
	return &Client{
		url:     url,
		tokens:  tokens,
		handler: handler,
		dialer: &websocket.Dialer{
			HandshakeTimeout: writeWait,
		},
		logger: logger.OrNop(log),
	}
}

// Connected reports whether a connection is currently open
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Run keeps a connection open until ctx is done, reconnecting with backoff
func (c *Client) Run(ctx context.Context) error {
	if c.url == "" {
		return ErrNoEndpoint
	}

	backoff := minBackoff
	for {
		started := time.Now()
		err := c.Connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > maxBackoff {
			backoff = minBackoff
		}
		c.logger.Warn("Realtime connection lost",
			zap.Error(err),
			zap.Duration("retry_in", backoff),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		reconnects.Inc()
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Connect runs a single connection and returns when it closes or ctx is done
func (c *Client) Connect(ctx context.Context) error {
	header := http.Header{}
	if token, ok, err := securestore.Lookup(ctx, c.tokens, securestore.KeyAuthToken); err != nil {
		return err
	} else if ok {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}
	c.setConnected(true)
	defer c.setConnected(false)
	c.logger.Info("Realtime connected", zap.String("url", c.url))

	done := make(chan struct{})
	go c.writePump(ctx, conn, done)
	err = c.readPump(ctx, conn)
	close(done)
	return err
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket error", zap.Error(err))
			}
			return err
		}
		// Events are applied in arrival order
		c.processMessage(ctx, message)
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return

		case <-done:
			return
		}
	}
}

func (c *Client) processMessage(ctx context.Context, data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Warn("Error unmarshaling event", zap.Error(err))
		return
	}
	if err := c.handler.Handle(ctx, ev); err != nil {
		c.logger.Warn("Failed to apply event", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
