package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/model"
)

const (
	AuditBatchSize    = 50
	AuditBatchTimeout = 2 * time.Second
	AuditPollTimeout  = 1 * time.Second
)

// AuditStore persists grading events. Both methods ignore an event already
// recorded for the same (result, type), so redelivery is harmless.
type AuditStore interface {
	BulkInsert(ctx context.Context, events []model.GradingEvent) error
	Insert(ctx context.Context, ev model.GradingEvent) error
}

// AuditWorker drains the grading events queue into the audit log.
type AuditWorker struct {
	store AuditStore
	rdb   *redis.Client
	log   zerolog.Logger
}

func NewAuditWorker(store AuditStore, rdb *redis.Client, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "audit_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AuditWorker started")

	batch := make([]model.GradingEvent, 0, AuditBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AuditBatchSize || time.Since(lastFlush) >= AuditBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, AuditPollTimeout, config.WorkerKey.GradingEventsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var ev model.GradingEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, ev)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-event fallback
// ----------------------------------------------------------------

func (w *AuditWorker) flushSafe(ctx context.Context, batch []model.GradingEvent) {
	if len(batch) == 0 {
		return
	}

	err := w.store.BulkInsert(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Audit batch recorded")
		return
	}

	w.log.Warn().Err(err).Msg("bulk audit insert failed, using fallback")

	for _, ev := range batch {
		if err := w.store.Insert(ctx, ev); err != nil {
			w.log.Error().
				Err(err).
				Str("result_id", ev.ResultID.String()).
				Msg("single audit insert failed, requeueing")
			w.requeue(ctx, ev)
		}
	}
}

func (w *AuditWorker) requeue(ctx context.Context, ev model.GradingEvent) {
	if w.rdb == nil {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.GradingEventsQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Str("result_id", ev.ResultID.String()).Msg("requeue failed, event dropped")
	}
}
