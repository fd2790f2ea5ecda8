package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const refreshTimeout = 30 * time.Second

// Prewarmer reloads published exams into the exam cache.
type Prewarmer interface {
	PrewarmAllCaches(ctx context.Context) error
}

// CacheRefresher re-warms the exam cache on a cron schedule so entries
// evicted by TTL or lost on a Redis restart come back without a request miss.
type CacheRefresher struct {
	cron      *cron.Cron
	prewarmer Prewarmer
	log       zerolog.Logger
}

// NewCacheRefresher validates spec (standard cron or "@every 10m") and
// schedules the refresh. Overlapping runs are skipped.
func NewCacheRefresher(spec string, prewarmer Prewarmer, log zerolog.Logger) (*CacheRefresher, error) {
	r := &CacheRefresher{
		prewarmer: prewarmer,
		log:       log.With().Str("component", "cache_refresher").Logger(),
	}
	r.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CacheRefresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := time.Now()
	if err := r.prewarmer.PrewarmAllCaches(ctx); err != nil {
		r.log.Error().Err(err).Msg("Scheduled cache refresh failed")
		return
	}
	r.log.Debug().Dur("took", time.Since(start)).Msg("Scheduled cache refresh done")
}

// Start runs the schedule until ctx is cancelled, then waits for a running
// refresh to finish.
func (r *CacheRefresher) Start(ctx context.Context) {
	r.log.Info().Msg("CacheRefresher started")
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.log.Info().Msg("CacheRefresher stopped")
}
