package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil-exam/vigil/internal/attempt"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/response"
)

// Client is the HTTP implementation of attempt.ExamAPI against the record
// server's JSON API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	mu     sync.RWMutex
	token  string
	stream *SaveStream
}

var _ attempt.ExamAPI = (*Client)(nil)

// New creates a Client for the given server base URL, e.g.
// "http://localhost:8080". A non-empty token authenticates all calls;
// guests start without one and the Client adopts the guest token issued
// at attempt start.
func New(baseURL string, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "apiclient").Logger(),
	}
}

// APIError is a non-2xx server response carrying the envelope's error code.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// ────────────────────────────────────────────────────────────────────────────
// ExamAPI
// ────────────────────────────────────────────────────────────────────────────

// StartAttempt starts or re-enters an attempt. For guest identities the
// server issues a bearer token with the result; the Client keeps it for
// all subsequent calls.
func (c *Client) StartAttempt(ctx context.Context, examID uuid.UUID, accessCode string, ident attempt.Identity) (*model.StartAttemptResult, error) {
	if ident.Token != "" {
		c.setToken(ident.Token)
	}
	req := model.StartAttemptRequest{
		AccessCode: accessCode,
		Guest:      ident.Guest,
	}
	var res model.StartAttemptResult
	path := fmt.Sprintf("/api/v1/exams/%s/attempts", examID)
	if err := c.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return nil, err
	}
	if res.GuestToken != "" {
		c.setToken(res.GuestToken)
	}
	return &res, nil
}

// SaveAnswer sends a response patch for one question, over the live stream
// when one is open and via HTTP otherwise.
func (c *Client) SaveAnswer(ctx context.Context, attemptID uuid.UUID, questionID string, patch model.ResponsePatch) error {
	if st := c.saveStream(); st != nil {
		err := st.Save(questionID, patch)
		if err == nil {
			return nil
		}
		c.log.Debug().Err(err).Msg("Stream save failed, falling back to HTTP")
		c.dropStream(st)
	}
	path := fmt.Sprintf("/api/v1/attempts/%s/answers/%s", attemptID, questionID)
	return c.do(ctx, http.MethodPut, path, patch, nil)
}

// LogViolation reports a proctoring violation, preferring the live stream.
func (c *Client) LogViolation(ctx context.Context, attemptID uuid.UUID, v model.ViolationEvent) error {
	if st := c.saveStream(); st != nil {
		err := st.Violation(v.Type)
		if err == nil {
			return nil
		}
		c.log.Debug().Err(err).Msg("Stream violation report failed, falling back to HTTP")
		c.dropStream(st)
	}
	path := fmt.Sprintf("/api/v1/attempts/%s/violations", attemptID)
	return c.do(ctx, http.MethodPost, path, model.LogViolationRequest{Type: v.Type}, nil)
}

// SubmitLive finalizes the attempt from the server's saved answers.
func (c *Client) SubmitLive(ctx context.Context, attemptID uuid.UUID) (*model.SubmitResult, error) {
	var res model.SubmitResult
	path := fmt.Sprintf("/api/v1/attempts/%s/submit", attemptID)
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitSealed delivers a sealed snapshot for verification and finalization.
func (c *Client) SubmitSealed(ctx context.Context, snap model.SealedSnapshot) (*model.SubmitResult, error) {
	var res model.SubmitResult
	path := fmt.Sprintf("/api/v1/attempts/%s/submit-sealed", snap.AttemptID)
	if err := c.do(ctx, http.MethodPost, path, snap, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendBeacon posts the unload-time state dump without blocking the caller.
// Delivery is best effort and failures are only logged.
func (c *Client) SendBeacon(payload model.BeaconPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		path := fmt.Sprintf("/api/v1/attempts/%s/beacon", payload.AttemptID)
		if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
			c.log.Debug().Err(err).Str("attempt_id", payload.AttemptID.String()).Msg("beacon not delivered")
		}
	}()
}

// CreateResumeRequest files a resume request for an interrupted attempt.
func (c *Client) CreateResumeRequest(ctx context.Context, attemptID uuid.UUID, requesterName string) (*model.ResumeTicket, error) {
	var ticket model.ResumeTicket
	path := fmt.Sprintf("/api/v1/attempts/%s/resume-requests", attemptID)
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Probe checks server reachability with a HEAD request.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/api/v1/probe", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Code: response.ErrInternal, Message: "probe failed"}
	}
	return nil
}

// ────────────────────────────────────────────────────────────────────────────
// Transport
// ────────────────────────────────────────────────────────────────────────────

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do sends a JSON request and decodes the envelope's data field into out.
// Non-2xx responses become *APIError, except the terminal submission
// rejections which map onto the session's sentinel errors.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Data  json.RawMessage     `json:"data"`
		Error *response.ErrorBody `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Code: response.ErrInternal, Message: "unreadable error response"}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return c.mapError(resp.StatusCode, envelope.Error)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) mapError(status int, body *response.ErrorBody) error {
	if body == nil {
		return &APIError{Status: status, Code: response.ErrInternal, Message: "no error body"}
	}
	switch body.Code {
	case response.ErrHashMismatch:
		return attempt.ErrIntegrityRejected
	case response.ErrExpiredWindow:
		return attempt.ErrWindowExpired
	}
	return &APIError{Status: status, Code: body.Code, Message: body.Message}
}
