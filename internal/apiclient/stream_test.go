package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vigil-exam/vigil/internal/model"
	ws "github.com/vigil-exam/vigil/internal/websocket"
)

// streamServer serves the WebSocket save stream plus the HTTP save endpoint,
// counting which lane each save arrived on.
type streamServer struct {
	mu        sync.Mutex
	wsSaves   int
	httpSaves int
	token     string
	closeWS   bool // accept the upgrade, then drop the connection
}

func (s *streamServer) counts() (wsSaves, httpSaves int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wsSaves, s.httpSaves
}

func (s *streamServer) seenToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *streamServer) handler(t *testing.T) http.HandlerFunc {
	up := gws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ws/v1/attempts/"):
			s.mu.Lock()
			s.token = r.URL.Query().Get("token")
			s.mu.Unlock()
			conn, err := up.Upgrade(w, r, nil)
			if err != nil {
				t.Errorf("upgrade: %v", err)
				return
			}
			if s.closeWS {
				conn.Close()
				return
			}
			defer conn.Close()
			for {
				var req ws.SaveRequest
				if err := conn.ReadJSON(&req); err != nil {
					return
				}
				s.mu.Lock()
				s.wsSaves++
				s.mu.Unlock()
				conn.WriteJSON(ws.AckResponse{Event: ws.EventAck, Status: "saved"})
			}
		case r.Method == http.MethodPut:
			s.mu.Lock()
			s.httpSaves++
			s.mu.Unlock()
			writeEnvelope(w, http.StatusOK, map[string]interface{}{}, nil)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}
}

func TestSaveAnswerRidesOpenStream(t *testing.T) {
	backend := &streamServer{}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	c := New(srv.URL, "taker-jwt", zerolog.Nop())
	attemptID := uuid.New()
	if err := c.OpenStream(context.Background(), attemptID); err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer c.CloseStream()

	sel := "opt-b"
	for i := 0; i < 3; i++ {
		if err := c.SaveAnswer(context.Background(), attemptID, uuid.New().String(), model.ResponsePatch{SelectedOptionID: &sel}); err != nil {
			t.Fatalf("SaveAnswer %d: %v", i, err)
		}
	}

	wsSaves, httpSaves := backend.counts()
	if wsSaves != 3 || httpSaves != 0 {
		t.Fatalf("ws saves = %d, http saves = %d, want all on the stream", wsSaves, httpSaves)
	}
	if got := backend.seenToken(); got != "taker-jwt" {
		t.Fatalf("stream token = %q, want bearer forwarded as query param", got)
	}
}

func TestSaveAnswerFallsBackToHTTPWhenStreamDies(t *testing.T) {
	backend := &streamServer{closeWS: true}
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	c := New(srv.URL, "taker-jwt", zerolog.Nop())
	attemptID := uuid.New()
	if err := c.OpenStream(context.Background(), attemptID); err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer c.CloseStream()

	// The server dropped the connection right after the handshake: the
	// first save fails over to HTTP and abandons the stream, the second
	// goes straight to HTTP.
	sel := "opt-c"
	for i := 0; i < 2; i++ {
		if err := c.SaveAnswer(context.Background(), attemptID, uuid.New().String(), model.ResponsePatch{SelectedOptionID: &sel}); err != nil {
			t.Fatalf("SaveAnswer %d: %v", i, err)
		}
	}

	wsSaves, httpSaves := backend.counts()
	if wsSaves != 0 || httpSaves != 2 {
		t.Fatalf("ws saves = %d, http saves = %d, want both over HTTP", wsSaves, httpSaves)
	}
	if c.saveStream() != nil {
		t.Fatal("dead stream not abandoned")
	}
}
