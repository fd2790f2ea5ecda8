package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/response"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health and runtime status.
type SystemHandler struct {
	db        Pinger
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. rdb may be nil.
func NewSystemHandler(db Pinger, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemStatus struct {
	Uptime string `json:"uptime"`

	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	// -1 when Redis is not configured.
	QueueGradingEvents int64 `json:"queue_grading_events"`
}

// Health godoc
// GET /health
// Reports 503 when the database (or a configured Redis) is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"database": "ok"}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Database health check failed")
		checks["database"] = "down"
		healthy = false
	}

	if h.rdb != nil {
		checks["redis"] = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			h.log.Warn().Err(err).Msg("Redis health check failed")
			checks["redis"] = "down"
			healthy = false
		}
	}

	if !healthy {
		response.Success(c, http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

// Status godoc
// GET /api/v1/teacher/system/status
// Returns Go runtime figures and the grading event backlog.
func (h *SystemHandler) Status(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := systemStatus{
		Uptime:             formatDuration(time.Since(h.startTime)),
		Goroutines:         runtime.NumGoroutine(),
		HeapAlloc:          mem.HeapAlloc,
		HeapSys:            mem.HeapSys,
		NumGC:              mem.NumGC,
		GoVersion:          runtime.Version(),
		NumCPU:             runtime.NumCPU(),
		QueueGradingEvents: -1,
	}

	if h.rdb != nil {
		n, err := h.rdb.LLen(c.Request.Context(), config.WorkerKey.GradingEventsQueue).Result()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to read grading events backlog")
		} else {
			status.QueueGradingEvents = n
		}
	}

	response.Success(c, http.StatusOK, status)
}

func formatDuration(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
