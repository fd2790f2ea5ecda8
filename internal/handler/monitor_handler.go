package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams an exam's grading activity to its author over SSE.
type MonitorHandler struct {
	rdb           *redis.Client
	examService   *service.ExamService
	resultService *service.ResultService
	log           zerolog.Logger

	refreshEvery   time.Duration
	keepAliveEvery time.Duration
}

// NewMonitorHandler creates a new MonitorHandler. rdb may be nil, in which
// case the stream relies on periodic refreshes only.
func NewMonitorHandler(
	rdb *redis.Client,
	examService *service.ExamService,
	resultService *service.ResultService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		examService:    examService,
		resultService:  resultService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		refreshEvery:   refreshInterval,
		keepAliveEvery: keepAliveInterval,
	}
}

// MonitorStats summarizes the results recorded so far.
type MonitorStats struct {
	TotalSubmitted    int     `json:"total_submitted"`
	TotalPassed       int     `json:"total_passed"`
	TotalFailed       int     `json:"total_failed"`
	AveragePercentage float64 `json:"average_percentage"`
}

func computeStats(results []model.ExamResultSummary) MonitorStats {
	stats := MonitorStats{TotalSubmitted: len(results)}
	if len(results) == 0 {
		return stats
	}
	var sum float64
	for _, r := range results {
		sum += r.Percentage
		if r.Status == model.ResultStatusPassed {
			stats.TotalPassed++
		} else {
			stats.TotalFailed++
		}
	}
	stats.AveragePercentage = sum / float64(len(results))
	return stats
}

// MonitorExamSSE godoc
// GET /api/v1/teacher/exams/:exam_id/monitor
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims, examID, ok := teacherExamParams(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	exam, err := h.examService.GetForAuthor(reqCtx, examID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	// 1. SSE headers
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	// 2. Initial snapshot
	h.sendSnapshot(c, reqCtx, exam)

	// 3. Live events; a nil channel never fires when Redis is off.
	var ch <-chan *redis.Message
	if h.rdb != nil {
		pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID.String()))
		defer pubsub.Close()
		ch = pubsub.Channel()
	}

	keepAliveTicker := time.NewTicker(h.keepAliveEvery)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(h.refreshEvery)
	defer refreshTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Teacher attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Teacher disconnected from live monitor SSE")
			return

		case msg, open := <-ch:
			if !open {
				ch = nil
				continue
			}
			// Forward the grading event as-is.
			h.writeData(c, []byte(msg.Payload))

		case <-refreshTicker.C:
			h.sendRefresh(c, reqCtx, examID, claims.UserID)

		case <-keepAliveTicker.C:
			h.writeData(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) writeData(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

// sendSnapshot writes the exam header and current results as the first event.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, ctx context.Context, exam *model.Exam) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	results, err := h.resultService.ListForExam(fetchCtx, exam.ID, exam.AuthorID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to load results for snapshot")
		results = []model.ExamResultSummary{}
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"exam": map[string]interface{}{
				"id":              exam.ID.String(),
				"title":           exam.Title,
				"status":          exam.Status,
				"total_marks":     exam.TotalMarks,
				"passing_marks":   exam.PassingMarks,
				"total_questions": len(exam.Questions),
			},
			"stats":   computeStats(results),
			"results": results,
		},
	})
	c.Writer.Flush()
}

// sendRefresh re-reads the aggregate stats and sends a compact refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, examID uuid.UUID, authorID int) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	results, err := h.resultService.ListForExam(ctx, examID, authorID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch results for refresh")
		return
	}

	c.SSEvent("message", map[string]interface{}{
		"type":  "refresh",
		"stats": computeStats(results),
	})
	c.Writer.Flush()
}
