// Package storage selects and assembles the persistence backends from
// configuration: PostgreSQL or SQLite for records, and Redis for the exam
// cache and grading events when configured.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/database"
	"github.com/stemsi/exstem-grader/internal/event"
	"github.com/stemsi/exstem-grader/internal/repository"
	"github.com/stemsi/exstem-grader/internal/repository/sqlite"
	"github.com/stemsi/exstem-grader/internal/service"
	"github.com/stemsi/exstem-grader/internal/worker"
)

// Stores bundles the wired backends. Cache and Redis are nil when
// REDIS_URL is empty.
type Stores struct {
	Exams   service.ExamStore
	Results service.ResultStore
	Audit   worker.AuditStore
	Cache   service.ExamCache
	Events  event.Publisher
	DB      Pinger
	Redis   *redis.Client

	closers []func()
}

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type sqlPinger struct{ db *sql.DB }

func (p sqlPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Open connects the configured backends. Callers must Close the result.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	s := &Stores{}

	var backend repository.ExamBackend
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := database.NewSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { db.Close() })
		if err := sqlite.EnsureSchema(ctx, db); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure sqlite schema: %w", err)
		}
		backend = sqlite.NewExamStore(db)
		s.Results = sqlite.NewResultStore(db)
		s.Audit = sqlite.NewAuditStore(db)
		s.DB = sqlPinger{db: db}

	default:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		backend = repository.NewExamRepository(pool)
		s.Results = repository.NewResultRepository(pool)
		s.Audit = repository.NewAuditRepository(pool)
		s.DB = poolPinger{pool: pool}
	}

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	publishers := event.Multi{event.NewLogPublisher(log)}
	if rdb != nil {
		s.closers = append(s.closers, func() { rdb.Close() })
		cached := repository.NewCachedExamStore(backend, rdb, cfg.ExamCacheTTL, log)
		s.Exams = cached
		s.Cache = cached
		s.Redis = rdb
		publishers = append(publishers, event.NewRedisPublisher(rdb))
	} else {
		s.Exams = backend
	}
	s.Events = publishers

	return s, nil
}

type poolPinger struct{ pool *pgxpool.Pool }

func (p poolPinger) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// Close releases connections in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
