package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Frame is the wire format shared with the scraper service: a named
// event plus its JSON payload. The scraper echoes back the session id it
// was given in start_scraping, which is what keeps concurrent scans on
// one connection apart.
type Frame struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// ScopedEvent is the subscription name for an event addressed to a
// single session. Frames carrying a session id dispatch only to handlers
// registered under the scoped name; frames without one dispatch to the
// bare event name.
func ScopedEvent(event, sessionID string) string {
	return event + "#" + sessionID
}

// Client is the websocket connection to the scraper. It implements the
// engine's Emitter contract: named-event subscribe/unsubscribe with
// synchronous handler invocation from the read loop. Handler
// registrations survive reconnects, so a scan resumed on a new
// connection keeps delivering to the same listeners; delivery is
// at-least-once and unordered, which the engine absorbs by design.
type Client struct {
	url    string
	dialer *websocket.Dialer

	mu       sync.RWMutex
	handlers map[string][]func(json.RawMessage)

	connMu sync.Mutex
	conn   *websocket.Conn
}

func NewClient(url string) *Client {
	return &Client{
		url:      url,
		dialer:   websocket.DefaultDialer,
		handlers: make(map[string][]func(json.RawMessage)),
	}
}

// On registers a handler for a named event. Handlers stack; Off removes
// the whole name at once.
func (c *Client) On(event string, handler func(data json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// Off removes every handler registered for the named event.
func (c *Client) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

// Emit sends a command frame to the scraper.
func (c *Client) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected to scraper")
	}
	if err := c.conn.WriteJSON(Frame{Event: event, Data: data}); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

// Run connects and keeps reading frames until the context is cancelled,
// reconnecting with backoff after any failure. Dispatch is synchronous:
// one frame is fully applied before the next is read, which is the
// single-writer model the engine's sessions assume for event order
// within a connection.
func (c *Client) Run(ctx context.Context) {
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			slog.Warn("Scraper connection failed", "url", c.url, "retry_in", backoff, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		slog.Info("Connected to scraper", "url", c.url)
		backoff = initialBackoff
		c.setConn(conn)

		c.readLoop(ctx, conn)

		c.setConn(nil)
		conn.Close()
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadJSON when the context goes away.
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
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				slog.Warn("Scraper connection lost", "error", err)
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame Frame) {
	event := frame.Event
	if frame.SessionID != "" {
		event = ScopedEvent(frame.Event, frame.SessionID)
	}

	c.mu.RLock()
	handlers := make([]func(json.RawMessage), len(c.handlers[event]))
	copy(handlers, c.handlers[event])
	c.mu.RUnlock()

	if len(handlers) == 0 {
		slog.Debug("Unhandled event", "event", frame.Event, "session", frame.SessionID)
		return
	}

	// Invoked without the lock held: terminal-event handlers
	// unsubscribe their own namespace mid-dispatch.
	for _, handler := range handlers {
		handler(frame.Data)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.conn = conn
}
