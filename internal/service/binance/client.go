package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinEdge/internal/domain/models"
	drepo "FinEdge/internal/domain/repository"
	applogger "FinEdge/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream backed by the Binance combined-stream
// websocket. It emits ticker events for every symbol and depth-10 snapshots
// for the depth symbols.
type Client struct {
	websocketURL   string
	symbols        []string
	depthSymbols   []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	bufferSize     int
	log            *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	nextID    int64
}

type Option func(*Client)

func WithDepthSymbols(symbols []string) Option {
	return func(c *Client) { c.depthSymbols = symbols }
}

func WithTiming(reconnectDelay, pingInterval time.Duration) Option {
	return func(c *Client) {
		if reconnectDelay > 0 {
			c.reconnectDelay = reconnectDelay
		}
		if pingInterval > 0 {
			c.pingInterval = pingInterval
		}
	}
}

func WithBufferSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Binance MarketStream. Depth defaults to the ticker symbols.
func New(websocketURL string, symbols []string, opts ...Option) *Client {
	c := &Client{
		websocketURL:   websocketURL,
		symbols:        symbols,
		depthSymbols:   symbols,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		bufferSize:     1024,
		log:            applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ drepo.MarketStream = (*Client)(nil)

// Connect establishes the websocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("binance connected", applogger.String("url", c.websocketURL))
	return nil
}

// Subscribe requests the ticker and depth streams.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("binance not connected")
	}
	c.nextID++
	req := subscribeRequest{
		Method: "SUBSCRIBE",
		Params: Streams(c.symbols, c.depthSymbols),
		ID:     c.nextID,
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("binance subscribe: %w", err)
	}
	c.log.Info("binance subscribed", applogger.Strings("streams", req.Params))
	return nil
}

// Read streams market events until the connection fails or ctx is done.
// A read failure is reported once on the error channel and both channels close.
func (c *Client) Read(ctx context.Context) (<-chan models.MarketEvent, <-chan error) {
	events := make(chan models.MarketEvent, c.bufferSize)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	done := make(chan struct{})
	go c.keepAlive(ctx, conn, done)

	go func() {
		defer close(done)
		defer close(events)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("binance conn nil")
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("binance read: %w", err)
				}
				return
			}
			ev, ok, err := Decode(b, time.Now())
			if err != nil {
				c.log.Debug("binance frame skipped", applogger.Error(err))
				continue
			}
			if !ok {
				continue
			}
			select {
			case events <- ev:
			default:
				// drop on backpressure
			}
		}
	}()

	return events, errs
}

func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// unblock the pending ReadMessage
			_ = conn.SetReadDeadline(time.Now())
			return
		case <-done:
			return
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		}
	}
}

// Reconnect closes, waits reconnectDelay, then connects and subscribes again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
