// Package client maintains the connection to the upstream recent-changes
// stream. It owns reconnect and backoff mechanics; collection state is never
// touched from here.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wikipulse/wikipulse/internal/health"
	"github.com/wikipulse/wikipulse/internal/metrics"
	"github.com/wikipulse/wikipulse/internal/model"
)

// StreamConfig holds stream client configuration.
type StreamConfig struct {
	URL              string
	Project          string
	HandshakeTimeout time.Duration
	MaxReconnectWait time.Duration
}

// EventHandler receives one decoded event at a time. The handler runs to
// completion before the next frame is read, which is what serializes event
// application downstream.
type EventHandler func(ev *model.RecentChange)

// ErrorHandler receives transport-level errors. Reconnects happen
// regardless; the callback only informs the host.
type ErrorHandler func(err error)

// subscribeFrame is sent after each (re)connect to scope the stream to the
// configured project.
type subscribeFrame struct {
	Action  string `json:"action"`
	Project string `json:"project"`
}

// StreamClient consumes the recent-changes websocket and delivers events to
// the handler, reconnecting with exponential backoff on any failure.
type StreamClient struct {
	config  *StreamConfig
	handler EventHandler
	onError ErrorHandler
	tracker *health.Tracker // may be nil
	metrics *metrics.Metrics
	logger  *zap.Logger
	dialer  *websocket.Dialer
	wg      sync.WaitGroup
}

// NewStreamClient creates a new stream client. tracker may be nil.
func NewStreamClient(cfg *StreamConfig, handler EventHandler, tracker *health.Tracker, m *metrics.Metrics, logger *zap.Logger) *StreamClient {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.MaxReconnectWait == 0 {
		cfg.MaxReconnectWait = 2 * time.Minute
	}
	return &StreamClient{
		config:  cfg,
		handler: handler,
		tracker: tracker,
		metrics: m,
		logger:  logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// SetErrorHandler registers the host's transport-error callback.
func (c *StreamClient) SetErrorHandler(fn ErrorHandler) {
	c.onError = fn
}

// Start launches the connect/read loop. It returns immediately; cancel ctx
// to tear the client down, then Wait for the loop to exit.
func (c *StreamClient) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)
}

// Wait blocks until the connect/read loop has exited.
func (c *StreamClient) Wait() {
	c.wg.Wait()
}

func (c *StreamClient) run(ctx context.Context) {
	defer c.wg.Done()

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = c.config.MaxReconnectWait
	policy.MaxElapsedTime = 0 // retry forever

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.connect(ctx)
		if err != nil {
			c.reportError(fmt.Errorf("failed to connect to stream: %w", err))
			if !c.sleep(ctx, policy.NextBackOff()) {
				return
			}
			continue
		}

		policy.Reset()
		c.setConnected(true)
		c.logger.Info("Connected to stream",
			zap.String("url", c.config.URL),
			zap.String("project", c.config.Project))

		err = c.readLoop(ctx, conn)
		conn.Close()
		c.setConnected(false)

		if ctx.Err() != nil {
			return
		}

		c.metrics.StreamReconnectsTotal.Inc()
		c.reportError(fmt.Errorf("stream connection lost: %w", err))
		if !c.sleep(ctx, policy.NextBackOff()) {
			return
		}
	}
}

func (c *StreamClient) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(subscribeFrame{Action: "subscribe", Project: c.config.Project}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return conn, nil
}

// readLoop decodes frames one at a time and hands them to the handler.
// Frames that fail to decode are skipped, not fatal.
func (c *StreamClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev model.RecentChange
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Debug("Skipping undecodable frame", zap.Error(err))
			continue
		}

		if c.tracker != nil {
			c.tracker.MarkEvent()
		}
		c.handler(&ev)
	}
}

func (c *StreamClient) setConnected(connected bool) {
	if connected {
		c.metrics.StreamConnected.Set(1)
	} else {
		c.metrics.StreamConnected.Set(0)
	}
	if c.tracker != nil {
		c.tracker.SetConnected(connected)
	}
}

func (c *StreamClient) reportError(err error) {
	c.metrics.StreamErrorsTotal.Inc()
	c.logger.Warn("Stream error", zap.Error(err))
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *StreamClient) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
