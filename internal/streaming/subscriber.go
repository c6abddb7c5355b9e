package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/spraywall/spraywall/pkg/streaming"
)

const (
	eventsChSize = 64
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
)

// Subscriber follows a route stream, reconnecting with exponential backoff
// when the connection drops.
type Subscriber struct {
	mu     sync.Mutex
	conn   *ws.Conn
	done   chan struct{}
	closed bool
	events chan streaming.Envelope

	wsURL   string
	backoff time.Duration
	logger  *slog.Logger
}

// StreamURL turns an http(s) API base URL into the stream endpoint URL.
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/routes/stream"
	return u.String(), nil
}

// Subscribe dials the stream at rawURL and starts reading events.
func Subscribe(ctx context.Context, rawURL string, logger *slog.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Subscriber{
		done:    make(chan struct{}),
		events:  make(chan streaming.Envelope, eventsChSize),
		wsURL:   rawURL,
		backoff: time.Second,
		logger:  logger,
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	s.conn = conn

	go s.run()
	return s, nil
}

// Events delivers stream messages. It is closed when the subscriber stops.
func (s *Subscriber) Events() <-chan streaming.Envelope {
	return s.events
}

func (s *Subscriber) run() {
	defer close(s.events)
	for {
		s.readLoop()
		if s.isClosed() {
			return
		}
		if !s.reconnect() {
			return
		}
	}
}

// readLoop reads envelopes until the connection fails.
func (s *Subscriber) readLoop() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				s.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.logger.Debug("Malformed stream message", "raw", string(message))
			continue
		}

		select {
		case s.events <- env:
		case <-s.done:
			return
		}
	}
}

// reconnect re-establishes the connection. It reports false once the
// subscriber is closed or every attempt failed.
func (s *Subscriber) reconnect() bool {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	backoff := s.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		s.logger.Info("Reconnecting to route stream", "attempt", attempt, "backoff", backoff)
		select {
		case <-s.done:
			return false
		case <-time.After(backoff):
		}

		conn, _, err := ws.DefaultDialer.Dial(s.wsURL, nil)
		if err != nil {
			s.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return false
		}
		s.conn = conn
		s.mu.Unlock()

		s.logger.Info("Route stream reconnected", "attempt", attempt)
		return true
	}

	s.logger.Error("Route stream reconnect failed after max attempts", "maxAttempts", maxReconnect)
	return false
}

func (s *Subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close sends a WebSocket close frame and stops reading.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
