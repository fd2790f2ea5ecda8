package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/model"
)

// RedisPublisher queues events for the audit worker and broadcasts them on
// the exam's monitor channel in one pipeline.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates a RedisPublisher.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.GradingEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.GradingEventsQueue, raw)
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(ev.ExamID.String()), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}
