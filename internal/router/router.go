package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/handler"
	"github.com/stemsi/exstem-grader/internal/middleware"
	"github.com/stemsi/exstem-grader/internal/response"
	"github.com/stemsi/exstem-grader/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	StudentPortal *handler.StudentPortalHandler
	Exam          *handler.ExamHandler
	Monitor       *handler.MonitorHandler
	WS            *handler.WSHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// submitLimiter throttles submissions per student.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	submitLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.GET("/health", handlers.System.Health)

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService), middleware.NoStore())
	{
		studentAPI.GET("/exams/:exam_id", handlers.StudentPortal.GetExamPaper)
		studentAPI.POST("/exams/:exam_id/submit", submitLimiter.Middleware(), handlers.StudentPortal.SubmitExam)
		studentAPI.GET("/results", handlers.StudentPortal.ListResults)
		studentAPI.GET("/results/:result_id", handlers.StudentPortal.GetResult)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService), submitLimiter.Middleware())
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.ExamWebSocketStream)
	}

	// ─── 3. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService), middleware.NoStore())
	{
		teacherAPI.POST("/exams", handlers.Exam.CreateExam)
		teacherAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		teacherAPI.POST("/exams/:exam_id/questions", handlers.Exam.AddQuestion)
		teacherAPI.POST("/exams/:exam_id/publish", handlers.Exam.PublishExam)
		teacherAPI.POST("/exams/:exam_id/close", handlers.Exam.CloseExam)
		teacherAPI.GET("/exams/:exam_id/results", handlers.Exam.ListExamResults)
		teacherAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)

		teacherAPI.GET("/system/status", handlers.System.Status)
	}

	return router
}
