// Package ingestion connects to the Binance trade stream and turns raw
// WebSocket payloads into trade events.
package ingestion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"marketpulse/internal/domain"
	"marketpulse/internal/observability"
)

// Source delivers trade events from an upstream feed.
type Source interface {
	// Events returns the channel of parsed trade events. The channel is
	// closed when the source shuts down.
	Events() <-chan domain.TradeEvent
	Close() error
}

// ClientConfig configures WebSocket client behavior.
type ClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// EventBuffer is the capacity of the outgoing event channel.
	EventBuffer int
}

// DefaultClientConfig returns default WebSocket configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		EventBuffer:       10000,
	}
}

// Client implements Source over a Binance combined trade stream using
// gorilla/websocket.
type Client struct {
	url    string
	config ClientConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	events chan domain.TradeEvent

	done chan struct{}
	wg   sync.WaitGroup

	log     zerolog.Logger
	metrics *observability.Metrics
}

var _ Source = (*Client)(nil)

// NewClient connects to the combined trade stream for the given symbols and
// starts the read and ping loops. The metrics argument may be nil.
func NewClient(ctx context.Context, baseURL string, symbols []string, config *ClientConfig, log zerolog.Logger, metrics *observability.Metrics) (*Client, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to subscribe")
	}

	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}

	c := &Client{
		url:     StreamURL(baseURL, symbols),
		config:  cfg,
		events:  make(chan domain.TradeEvent, cfg.EventBuffer),
		done:    make(chan struct{}),
		log:     log,
		metrics: metrics,
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Events returns the channel of parsed trade events.
func (c *Client) Events() <-chan domain.TradeEvent {
	return c.events
}

// connect establishes the WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Close closes the WebSocket connection and the event channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

// readLoop reads messages from the WebSocket, parses them and delivers
// events. On read errors it reconnects with exponential backoff.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			c.log.Warn().Err(err).Msg("websocket read failed, reconnecting")

			c.connMu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()

			if !c.reconnect() {
				return
			}
			continue
		}

		c.handleMessage(message)
	}
}

// reconnect redials until it succeeds or the client is closed. Returns
// false when the client shut down while waiting.
func (c *Client) reconnect() bool {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.ReconnectDelay
	bo.MaxInterval = c.config.MaxReconnectDelay
	bo.MaxElapsedTime = 0 // retry forever

	for {
		delay := bo.NextBackOff()

		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		if c.metrics != nil {
			c.metrics.WSReconnects.Inc()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.connect(ctx)
		cancel()

		if err == nil {
			c.log.Info().Str("url", c.url).Msg("websocket reconnected")
			return true
		}

		c.log.Warn().Err(err).Msg("websocket reconnect failed")
	}
}

// handleMessage parses a payload and delivers the trade event.
func (c *Client) handleMessage(message []byte) {
	ev, err := ParseTrade(message)
	if err != nil {
		if c.metrics != nil {
			c.metrics.WSParseFailures.Inc()
		}
		c.log.Debug().Err(err).Msg("skipping unparseable payload")
		return
	}

	// Block until we can send so no event is lost; the buffer absorbs bursts.
	select {
	case c.events <- *ev:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}
