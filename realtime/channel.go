// Package realtime maintains the bidirectional event channel between the
// editor and the sync backend. One Channel is shared by everything in the
// process that needs the connection; it is reference counted, connects on
// the first Acquire and disconnects after the last Release.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"draftpad/logger"
)

// ErrUnauthorized is returned by transports when the backend rejects the
// bearer token. It stops the reconnect loop; a fresh token needs a fresh
// channel.
var ErrUnauthorized = errors.New("realtime: unauthorized")

// Status is the channel's connection state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusUnauthorized
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Handler receives the decoded data of one named inbound event.
type Handler func(data json.RawMessage)

// StatusFunc observes connection state changes.
type StatusFunc func(Status)

const (
	defaultReconnectBase = 500 * time.Millisecond
	defaultReconnectMax  = 30 * time.Second
	defaultMaxAttempts   = 10
	// Consecutive dial failures on one transport before falling back to
	// the next (websocket to long-poll).
	transportFailThreshold = 3
)

// Config configures a Channel.
type Config struct {
	Endpoint      string
	Token         string
	Transports    []Transport // tried in order; defaults to websocket then long-poll
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	// MaxAttempts bounds consecutive failed dials (across all transports)
	// before the channel gives up and settles at disconnected. A
	// successful connection resets the count.
	MaxAttempts int
}

// Channel is the shared sync connection.
type Channel struct {
	mu       sync.Mutex
	cfg      Config
	refs     int
	conn     Conn
	status   Status
	handlers map[string]Handler
	watchers []StatusFunc
	cancel   context.CancelFunc
}

// NewChannel creates an unconnected channel.
func NewChannel(cfg Config) *Channel {
	if len(cfg.Transports) == 0 {
		cfg.Transports = []Transport{NewWebsocketTransport(), NewLongPollTransport()}
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = defaultReconnectBase
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = defaultReconnectMax
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Channel{
		cfg:      cfg,
		handlers: make(map[string]Handler),
	}
}

// On registers the handler for one named inbound event. Registration must
// happen before the first Acquire; there is one handler per event name.
func (c *Channel) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = h
}

// OnStatus registers a connection state observer.
func (c *Channel) OnStatus(fn StatusFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// Status returns the current connection state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Acquire takes a reference; the first reference starts the connection
// loop.
func (c *Channel) Acquire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs++
	logger.Debug("channel acquired (refs=%d)", c.refs)
	if c.refs > 1 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx)
}

// Release drops a reference; the last release tears the connection down.
func (c *Channel) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		logger.Warn("channel released more times than acquired")
		return
	}
	c.refs--
	logger.Debug("channel released (refs=%d)", c.refs)
	if c.refs > 0 {
		return
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.setStatusLocked(StatusDisconnected)
}

// Emit sends one named event. While the channel is not connected the
// event is logged and dropped; callers treat the channel as fire-and-
// forget and rely on snapshot resync after reconnect.
func (c *Channel) Emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	status := c.status
	c.mu.Unlock()

	if conn == nil {
		logger.Warn("dropping %s: channel %s", event, status)
		return nil
	}

	data, binary, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(data, binary); err != nil {
		logger.Warn("dropping %s: write failed: %v", event, err)
		return nil
	}
	return nil
}

func (c *Channel) run(ctx context.Context) {
	backoff := c.cfg.ReconnectBase
	transportIdx := 0
	fails := 0
	attempts := 0

	for ctx.Err() == nil {
		if err := checkToken(c.cfg.Token, time.Now()); err != nil {
			logger.Warn("not connecting: %v", err)
			c.setStatus(StatusUnauthorized)
			return
		}

		transport := c.cfg.Transports[transportIdx]
		c.setStatus(StatusConnecting)
		logger.Debug("dialing %s via %s", c.cfg.Endpoint, transport.Name())

		conn, err := transport.Dial(ctx, c.cfg.Endpoint, c.cfg.Token)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				logger.Warn("backend rejected token")
				c.setStatus(StatusUnauthorized)
				return
			}
			logger.Warn("%s dial failed: %v", transport.Name(), err)
			fails++
			attempts++
			if fails >= transportFailThreshold && transportIdx+1 < len(c.cfg.Transports) {
				transportIdx++
				fails = 0
				logger.Info("falling back to %s transport", c.cfg.Transports[transportIdx].Name())
			}
			c.setStatus(StatusDisconnected)
			if attempts >= c.cfg.MaxAttempts {
				logger.Warn("giving up after %d failed connection attempts", attempts)
				return
			}
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.cfg.ReconnectMax)
			continue
		}

		fails = 0
		attempts = 0
		backoff = c.cfg.ReconnectBase
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setStatus(StatusConnected)
		logger.Info("connected via %s", transport.Name())

		err = c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrUnauthorized) {
			logger.Warn("backend revoked authorization")
			c.setStatus(StatusUnauthorized)
			return
		}
		logger.Warn("connection lost: %v", err)
		c.setStatus(StatusDisconnected)
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, c.cfg.ReconnectMax)
	}
}

func (c *Channel) readLoop(ctx context.Context, conn Conn) error {
	for {
		data, binary, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		frame, err := decodeFrame(data, binary)
		if err != nil {
			logger.Warn("dropping inbound frame: %v", err)
			continue
		}

		c.mu.Lock()
		handler := c.handlers[frame.Event]
		c.mu.Unlock()
		if handler == nil {
			logger.Debug("no handler for inbound event %s", frame.Event)
			continue
		}
		handler(frame.Data)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Channel) setStatus(s Status) {
	c.mu.Lock()
	c.setStatusLocked(s)
	c.mu.Unlock()
}

func (c *Channel) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	watchers := make([]StatusFunc, len(c.watchers))
	copy(watchers, c.watchers)
	// Observers run outside the critical section.
	go func() {
		for _, fn := range watchers {
			fn(s)
		}
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
