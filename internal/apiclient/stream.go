package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"

	"github.com/vigil-exam/vigil/internal/model"
	ws "github.com/vigil-exam/vigil/internal/websocket"
)

const streamKeepalive = 2 * time.Minute

// SaveStream is the WebSocket fast lane for incremental saves and violation
// reports. It is an optimization over the HTTP endpoints, never a
// requirement: while a Client holds an open stream, SaveAnswer and
// LogViolation route through it and fall back to HTTP the moment it fails.
type SaveStream struct {
	mu   sync.Mutex
	conn *gws.Conn

	once sync.Once
	stop chan struct{}
}

// OpenStream dials the attempt's live stream and routes subsequent saves
// through it. The bearer token rides as a query parameter because browser
// WebSocket clients cannot set headers, and the server authenticates the
// same way for every client.
func (c *Client) OpenStream(ctx context.Context, attemptID uuid.UUID) error {
	wsBase := strings.Replace(c.baseURL, "http", "ws", 1)
	u := fmt.Sprintf("%s/ws/v1/attempts/%s/stream?token=%s",
		wsBase, attemptID, url.QueryEscape(c.bearer()))

	conn, resp, err := gws.DefaultDialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}

	st := &SaveStream{conn: conn, stop: make(chan struct{})}
	c.mu.Lock()
	old := c.stream
	c.stream = st
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}

	go c.keepalive(st)
	return nil
}

// CloseStream tears down the stream, if any. Saves go back to HTTP.
func (c *Client) CloseStream() {
	c.mu.Lock()
	st := c.stream
	c.stream = nil
	c.mu.Unlock()
	if st != nil {
		st.Close()
	}
}

func (c *Client) saveStream() *SaveStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stream
}

// dropStream abandons a failed stream so later calls go straight to HTTP.
func (c *Client) dropStream(st *SaveStream) {
	c.mu.Lock()
	if c.stream == st {
		c.stream = nil
	}
	c.mu.Unlock()
	st.Close()
}

// keepalive pings through the server's idle read deadline. A failed ping
// means the stream is dead; it is dropped rather than repaired.
func (c *Client) keepalive(st *SaveStream) {
	t := time.NewTicker(streamKeepalive)
	defer t.Stop()
	for {
		select {
		case <-st.stop:
			return
		case <-t.C:
			if err := st.Ping(); err != nil {
				c.log.Debug().Err(err).Msg("Stream keepalive failed")
				c.dropStream(st)
				return
			}
		}
	}
}

// Save patches one question's response over the stream and waits for the
// server's ack.
func (s *SaveStream) Save(questionID string, patch model.ResponsePatch) error {
	return s.roundTrip(ws.SaveRequest{
		Action:     ws.ActionSave,
		QuestionID: questionID,
		Patch:      patch,
	})
}

// Violation reports a proctoring violation over the stream.
func (s *SaveStream) Violation(vt model.ViolationType) error {
	return s.roundTrip(ws.ViolationRequest{Action: ws.ActionViolation, Type: vt})
}

// Ping exercises the connection; an error means the stream is dead.
func (s *SaveStream) Ping() error {
	return s.roundTrip(ws.PingRequest{Action: ws.ActionPing})
}

// Close tears the connection down. Idempotent.
func (s *SaveStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		err = s.conn.Close()
	})
	return err
}

// roundTrip writes one request and reads one event. The stream protocol is
// strictly request/response, so a single lock serializes callers.
func (s *SaveStream) roundTrip(req interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(req); err != nil {
		return err
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return err
	}

	var ev struct {
		Event ws.Event `json:"event"`
		Error string   `json:"error"`
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if ev.Event == ws.EventError {
		return fmt.Errorf("stream rejected: %s", ev.Error)
	}
	return nil
}
