package localstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vigil-exam/vigil/internal/attempt"
	"github.com/vigil-exam/vigil/internal/model"
)

const (
	kindResponses = "responses"
	kindTimer     = "timer"
	kindSeal      = "seal"
)

// Store is crash-surviving local persistence backed by SQLite. Every record
// is keyed by (exam_id, attempt_id, kind) so concurrent attempts on
// different exams never collide. It implements attempt.DurableStore.
type Store struct {
	db *sql.DB
}

var _ attempt.DurableStore = (*Store)(nil)

// Open creates (or reuses) the store database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "attempt_state.db"))
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// SQLite handles one writer at a time; the session loop is the only
	// writer, so a single connection avoids lock contention entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS attempt_state (
			exam_id    TEXT NOT NULL,
			attempt_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			payload    BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (exam_id, attempt_id, kind)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) save(examID, attemptID uuid.UUID, kind string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO attempt_state (exam_id, attempt_id, kind, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (exam_id, attempt_id, kind) DO UPDATE
		SET payload = excluded.payload, updated_at = excluded.updated_at`,
		examID.String(), attemptID.String(), kind, payload, time.Now().UTC())
	return err
}

func (s *Store) load(examID, attemptID uuid.UUID, kind string, v interface{}) (bool, error) {
	var payload []byte
	err := s.db.QueryRow(`
		SELECT payload FROM attempt_state
		WHERE exam_id = ? AND attempt_id = ? AND kind = ?`,
		examID.String(), attemptID.String(), kind).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	return true, nil
}

// SaveResponses persists the full per-attempt answer state.
func (s *Store) SaveResponses(examID, attemptID uuid.UUID, snap model.ResponseSnapshot) error {
	return s.save(examID, attemptID, kindResponses, snap)
}

// LoadResponses returns the stored answer state, or nil if none exists.
func (s *Store) LoadResponses(examID, attemptID uuid.UUID) (*model.ResponseSnapshot, error) {
	var snap model.ResponseSnapshot
	ok, err := s.load(examID, attemptID, kindResponses, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

// SaveTimer persists the periodic timer checkpoint.
func (s *Store) SaveTimer(examID, attemptID uuid.UUID, cp attempt.TimerCheckpoint) error {
	return s.save(examID, attemptID, kindTimer, cp)
}

// LoadTimer returns the stored timer checkpoint, or nil if none exists.
func (s *Store) LoadTimer(examID, attemptID uuid.UUID) (*attempt.TimerCheckpoint, error) {
	var cp attempt.TimerCheckpoint
	ok, err := s.load(examID, attemptID, kindTimer, &cp)
	if err != nil || !ok {
		return nil, err
	}
	return &cp, nil
}

// SaveSeal persists a sealed snapshot.
func (s *Store) SaveSeal(examID, attemptID uuid.UUID, snap model.SealedSnapshot) error {
	return s.save(examID, attemptID, kindSeal, snap)
}

// LoadSeal returns the most recent seal stored for the exam regardless of
// attempt: at re-entry the attempt ID is only known from the seal itself.
func (s *Store) LoadSeal(examID uuid.UUID) (*model.SealedSnapshot, error) {
	var payload []byte
	err := s.db.QueryRow(`
		SELECT payload FROM attempt_state
		WHERE exam_id = ? AND kind = ?
		ORDER BY updated_at DESC LIMIT 1`,
		examID.String(), kindSeal).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap model.SealedSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal seal: %w", err)
	}
	return &snap, nil
}

// DeleteSeal removes the seal for an attempt.
func (s *Store) DeleteSeal(examID, attemptID uuid.UUID) error {
	_, err := s.db.Exec(`
		DELETE FROM attempt_state
		WHERE exam_id = ? AND attempt_id = ? AND kind = ?`,
		examID.String(), attemptID.String(), kindSeal)
	return err
}

// Purge removes all keys for the attempt after a successful submission.
func (s *Store) Purge(examID, attemptID uuid.UUID) error {
	_, err := s.db.Exec(`
		DELETE FROM attempt_state
		WHERE exam_id = ? AND attempt_id = ?`,
		examID.String(), attemptID.String())
	return err
}
