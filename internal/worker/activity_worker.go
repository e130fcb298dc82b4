package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/st3v1n/SchoolManager/internal/config"
)

const (
	ActivityBatchSize    = 100
	ActivityBatchTimeout = 2 * time.Second
	ActivityPollTimeout  = 1 * time.Second
)

// ActivityWorker consumes the heartbeat queue and flushes last_activity
// bumps to PostgreSQL in batches, keeping the ping endpoint cheap. Finalized
// attempts are immutable: the bulk update skips any row with submitted_at
// set, so a straggling ping can never touch a sealed attempt.
type ActivityWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewActivityWorker creates a new ActivityWorker.
func NewActivityWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ActivityWorker {
	return &ActivityWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "activity_worker").Logger(),
	}
}

type activityPayload struct {
	AttemptID string `json:"attempt_id"`
	At        int64  `json:"at"`
}

// Start begins the worker loop with batching. Call in a goroutine.
func (w *ActivityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ActivityWorker started")

	batch := make([]*activityPayload, 0, ActivityBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ActivityBatchSize || time.Since(lastFlush) >= ActivityBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ActivityPollTimeout, config.WorkerKey.ActivityQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p activityPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *ActivityWorker) flushSafe(ctx context.Context, batch []*activityPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkTouch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk activity update failed, requeueing batch")
		for _, p := range batch {
			raw, _ := json.Marshal(p)
			w.rdb.RPush(ctx, config.WorkerKey.ActivityQueue, raw)
		}
	}
}

// bulkTouch pushes all buffered pings in a single UNNEST round trip. Only
// the newest timestamp wins per attempt; live rows only.
func (w *ActivityWorker) bulkTouch(ctx context.Context, batch []*activityPayload) error {
	n := len(batch)
	attemptIDs := make([]uuid.UUID, 0, n)
	seenAts := make([]time.Time, 0, n)

	for _, p := range batch {
		id, err := uuid.Parse(p.AttemptID)
		if err != nil {
			w.log.Error().Str("attempt_id", p.AttemptID).Msg("dropping ping with bad attempt id")
			continue
		}
		attemptIDs = append(attemptIDs, id)
		seenAts = append(seenAts, time.Unix(p.At, 0))
	}
	if len(attemptIDs) == 0 {
		return nil
	}

	query := `
		UPDATE exam_attempts AS a
		SET last_activity = GREATEST(a.last_activity, t.seen_at)
		FROM (
			SELECT u.attempt_id, MAX(u.seen_at) AS seen_at
			FROM UNNEST($1::uuid[], $2::timestamptz[]) AS u (attempt_id, seen_at)
			GROUP BY u.attempt_id
		) AS t
		WHERE a.id = t.attempt_id
		  AND a.submitted_at IS NULL
	`

	_, err := w.pool.Exec(ctx, query, attemptIDs, seenAts)
	return err
}
