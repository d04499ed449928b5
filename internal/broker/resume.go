package broker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vigil-exam/vigil/internal/attempt"
	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/model"
)

// ResumeBroker bridges the server's resume decision channel to a waiting
// session. One subscription per request ID; events are decoded off the
// Redis PubSub stream and fanned into a buffered channel.
type ResumeBroker struct {
	rdb *redis.Client
	log zerolog.Logger
}

var _ attempt.ResumeBroker = (*ResumeBroker)(nil)

// NewResumeBroker creates a ResumeBroker on the given Redis client.
func NewResumeBroker(rdb *redis.Client, log zerolog.Logger) *ResumeBroker {
	return &ResumeBroker{
		rdb: rdb,
		log: log.With().Str("component", "resume_broker").Logger(),
	}
}

// Subscribe listens for decision events on the request's channel. The
// returned cancel func tears the subscription down; the event channel is
// closed when the subscription ends.
func (b *ResumeBroker) Subscribe(ctx context.Context, requestID uuid.UUID) (<-chan model.ResumeEvent, func(), error) {
	sub := b.rdb.Subscribe(ctx, config.CacheKey.ResumeChannel(requestID.String()))
	// Force the SUBSCRIBE round trip so a dead Redis fails here, not silently.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, err
	}

	events := make(chan model.ResumeEvent, 4)
	done := make(chan struct{})

	go func() {
		defer close(events)
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev model.ResumeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn().Err(err).Str("request_id", requestID.String()).Msg("undecodable resume event dropped")
					continue
				}
				select {
				case events <- ev:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			sub.Close()
		})
	}
	return events, cancel, nil
}
