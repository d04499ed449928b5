package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil-exam/vigil/internal/attempt"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/response"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, errBody *response.ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response.Response{Data: data, Error: errBody})
}

func TestStartAttemptAdoptsGuestToken(t *testing.T) {
	examID := uuid.New()
	attemptID := uuid.New()
	var savedAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/exams/"+examID.String()+"/attempts":
			var req model.StartAttemptRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode start request: %v", err)
			}
			if req.Guest == nil || req.Guest.Email != "guest@example.com" {
				t.Fatalf("guest info not forwarded: %+v", req.Guest)
			}
			writeEnvelope(w, http.StatusCreated, model.StartAttemptResult{
				AttemptID:            attemptID,
				TimeRemainingSeconds: 600,
				GuestToken:           "guest-jwt",
			}, nil)
		case r.Method == http.MethodPut:
			savedAuth = r.Header.Get("Authorization")
			writeEnvelope(w, http.StatusOK, map[string]interface{}{}, nil)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", zerolog.Nop())
	res, err := c.StartAttempt(context.Background(), examID, "", attempt.Identity{
		Kind:  model.SubjectKindGuest,
		Guest: &model.GuestInfo{Name: "Guest One", Email: "guest@example.com"},
	})
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if res.AttemptID != attemptID {
		t.Fatalf("attempt ID = %s, want %s", res.AttemptID, attemptID)
	}

	sel := "opt-a"
	if err := c.SaveAnswer(context.Background(), attemptID, uuid.New().String(), model.ResponsePatch{SelectedOptionID: &sel}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if savedAuth != "Bearer guest-jwt" {
		t.Fatalf("guest token not adopted, Authorization = %q", savedAuth)
	}
}

func TestTerminalRejectionsMapToSentinels(t *testing.T) {
	cases := []struct {
		code response.ErrCode
		want error
	}{
		{response.ErrHashMismatch, attempt.ErrIntegrityRejected},
		{response.ErrExpiredWindow, attempt.ErrWindowExpired},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusUnprocessableEntity, nil, &response.ErrorBody{Code: tc.code, Message: "rejected"})
		}))
		c := New(srv.URL, "taker-jwt", zerolog.Nop())
		_, err := c.SubmitSealed(context.Background(), model.SealedSnapshot{
			AttemptID: uuid.New(),
			ExamID:    uuid.New(),
			SealedAt:  time.Now(),
		})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %s mapped to %v, want %v", tc.code, err, tc.want)
		}
	}
}

func TestTransientErrorKeepsCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusConflict, nil, &response.ErrorBody{Code: response.ErrAttemptFinalized, Message: "already finalized"})
	}))
	defer srv.Close()

	c := New(srv.URL, "taker-jwt", zerolog.Nop())
	_, err := c.SubmitLive(context.Background(), uuid.New())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Code != response.ErrAttemptFinalized {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if errors.Is(err, attempt.ErrIntegrityRejected) || errors.Is(err, attempt.ErrWindowExpired) {
		t.Fatal("transient error must not match terminal sentinels")
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Path != "/api/v1/probe" {
			t.Fatalf("unexpected probe request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "", zerolog.Nop())
	if err := c.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}

	srv.Close()
	if err := c.Probe(context.Background()); err == nil {
		t.Fatal("Probe against closed server should fail")
	}
}
