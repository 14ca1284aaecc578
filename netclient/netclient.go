// Package netclient is the client-side WebSocket transport: dial,
// decode, dispatch, and — since the teacher's own thin client has none
// — a reconnect loop with exponential backoff, grounded in
// korjavin-virusbot's callback-driven client design.
package netclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/nullterm/gridwars/protocol"
)

// Callbacks are invoked from the client's own read goroutine; a
// caller that touches shared state from them must synchronize itself.
type Callbacks struct {
	OnConnect     func()
	OnDisconnect  func(err error)
	OnMessage     func(protocol.Message)
	OnReconnecting func(attempt int, delay time.Duration)
	OnReconnected  func()
}

// Options configures dial target and reconnect policy.
type Options struct {
	URL                string
	Origin             string
	PlayerName         string

	ReconnectEnabled   bool
	MaxAttempts        int
	RetryDelay         time.Duration
	ExponentialBackoff bool
	MaxRetryDelay      time.Duration
}

// Client owns one logical session to the server: it may span several
// underlying sockets across reconnects, resuming via a remembered
// playerId.
type Client struct {
	opts      Options
	callbacks Callbacks

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	clientID  string
	playerID  string

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Client. Call Run to connect and begin processing.
func New(opts Options, callbacks Callbacks) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{opts: opts, callbacks: callbacks, ctx: ctx, cancel: cancel}
}

// Run dials, sends CONNECT, and processes frames until the context is
// canceled via Close. If the connection drops and reconnection is
// enabled, Run retries with backoff before returning.
func (c *Client) Run() error {
	for {
		err := c.runOnce()
		if c.ctx.Err() != nil {
			return nil
		}
		if !c.opts.ReconnectEnabled {
			return err
		}
		if !c.reconnectWithBackoff() {
			return fmt.Errorf("netclient: exhausted reconnect attempts: %w", err)
		}
	}
}

func (c *Client) runOnce() error {
	conn, err := websocket.Dial(c.opts.URL, "", c.opts.Origin)
	if err != nil {
		return fmt.Errorf("netclient: dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.sendConnect(); err != nil {
		_ = conn.Close()
		return err
	}

	if c.callbacks.OnConnect != nil {
		c.callbacks.OnConnect()
	}

	err = c.readLoop(conn)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	if c.callbacks.OnDisconnect != nil {
		c.callbacks.OnDisconnect(err)
	}
	return err
}

func (c *Client) sendConnect() error {
	c.mu.Lock()
	playerID := c.playerID
	c.mu.Unlock()

	return c.Send(protocol.TypeConnect, protocol.ConnectClientPayload{
		PlayerID:   playerID,
		PlayerName: c.opts.PlayerName,
	})
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		select {
		case <-c.ctx.Done():
			return nil
		default:
		}

		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			return err
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			logrus.WithError(err).Warn("netclient: dropping malformed frame")
			continue
		}

		if msg.Type == protocol.TypeConnect {
			var payload protocol.ConnectServerPayload
			if err := protocol.DecodePayload(msg, &payload); err == nil {
				c.mu.Lock()
				c.clientID = payload.ClientID
				c.playerID = payload.PlayerID
				c.mu.Unlock()
			}
		}

		if msg.Type == protocol.TypePing {
			if err := c.Send(protocol.TypePong, nil); err != nil {
				logrus.WithError(err).Warn("netclient: failed to reply to ping")
			}
		}

		if c.callbacks.OnMessage != nil {
			c.callbacks.OnMessage(msg)
		}
	}
}

// reconnectWithBackoff sleeps with exponential backoff capped at
// MaxRetryDelay, up to MaxAttempts tries, calling OnReconnecting before
// each. Returns false once attempts are exhausted or the client was closed.
func (c *Client) reconnectWithBackoff() bool {
	delay := c.opts.RetryDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	maxDelay := c.opts.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}

	for attempt := 1; c.opts.MaxAttempts <= 0 || attempt <= c.opts.MaxAttempts; attempt++ {
		wait := delay
		if c.opts.ExponentialBackoff {
			wait = time.Duration(math.Min(float64(maxDelay), float64(delay)*math.Pow(2, float64(attempt-1))))
		}
		if c.callbacks.OnReconnecting != nil {
			c.callbacks.OnReconnecting(attempt, wait)
		}

		select {
		case <-c.ctx.Done():
			return false
		case <-time.After(wait):
		}

		conn, err := websocket.Dial(c.opts.URL, "", c.opts.Origin)
		if err != nil {
			continue
		}
		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()

		if err := c.sendConnect(); err != nil {
			_ = conn.Close()
			continue
		}

		if c.callbacks.OnReconnected != nil {
			c.callbacks.OnReconnected()
		}
		return true
	}
	return false
}

// Send encodes and writes a single message on the current socket.
func (c *Client) Send(t protocol.Type, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("netclient: not connected")
	}

	msg, err := protocol.Encode(t, protocol.NowMillis(), "", payload)
	if err != nil {
		return fmt.Errorf("netclient: encode failed: %w", err)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("netclient: marshal failed: %w", err)
	}
	return websocket.Message.Send(conn, raw)
}

// PlayerID returns the session's server-assigned playerId, empty
// until the first CONNECT reply arrives.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// IsConnected reports whether the current socket is live.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close stops Run's reconnect loop and closes the active socket.
func (c *Client) Close() {
	c.cancel()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
