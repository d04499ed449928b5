package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/model"
)

// BeaconWorker consumes persist_beacons_queue. Beacons are fire-and-forget
// unload dumps, so validation happens here rather than at the HTTP edge: the
// attempt must still be in progress, otherwise the dump is discarded.
type BeaconWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewBeaconWorker creates a new BeaconWorker.
func NewBeaconWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *BeaconWorker {
	return &BeaconWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "beacon_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *BeaconWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *BeaconWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistBeaconsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var payload model.BeaconPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Discarding malformed beacon")
		return
	}

	if err := w.persistBeacon(ctx, &payload); err != nil {
		w.log.Warn().Err(err).
			Str("attempt_id", payload.AttemptID.String()).
			Msg("Beacon persist failed, requeueing")
		w.rdb.RPush(ctx, config.WorkerKey.PersistBeaconsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *BeaconWorker) persistBeacon(ctx context.Context, p *model.BeaconPayload) error {
	// Beacons are only advisory; persist responses for in-progress attempts
	// and drop the rest silently.
	var status model.AttemptStatus
	err := w.pool.QueryRow(ctx,
		`SELECT status FROM attempts WHERE id = $1`, p.AttemptID).Scan(&status)
	if err != nil {
		w.log.Debug().Str("attempt_id", p.AttemptID.String()).Msg("Beacon for unknown attempt, dropping")
		return nil
	}
	if status != model.AttemptStatusInProgress {
		return nil
	}

	for qid, entry := range p.Responses {
		if _, err := uuid.Parse(qid); err != nil {
			continue
		}
		entryJSON, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if _, err := w.pool.Exec(ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, answer)
			 VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (attempt_id, question_id) DO UPDATE
			 SET answer = EXCLUDED.answer, updated_at = NOW()`,
			p.AttemptID, qid, entryJSON,
		); err != nil {
			return err
		}
	}
	return nil
}
