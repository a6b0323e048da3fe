package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/recollection-backend/internal/http/handlers"
	httpMW "github.com/yungbote/recollection-backend/internal/http/middleware"
	"github.com/yungbote/recollection-backend/internal/http/response"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler   *httpH.HealthHandler
	ContentHandler  *httpH.ContentHandler
	CourseHandler   *httpH.CourseHandler
	TaskHandler     *httpH.TaskHandler
	ProgressHandler *httpH.ProgressHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	response.UseJSONFieldNames()
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	protected := r.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	api := protected.Group("/api")
	{
		// Content
		if cfg.ContentHandler != nil {
			api.POST("/contents", cfg.ContentHandler.Create)
			api.GET("/contents", cfg.ContentHandler.List)
			api.GET("/contents/:id", cfg.ContentHandler.Get)
		}

		// Course
		if cfg.CourseHandler != nil {
			api.GET("/courses", cfg.CourseHandler.ListUserCourses)
			api.GET("/courses/:id", cfg.CourseHandler.GetCourse)
		}

		// Generation tasks
		if cfg.TaskHandler != nil {
			api.POST("/courses/generate", cfg.TaskHandler.Generate)
			api.GET("/tasks", cfg.TaskHandler.ListTasks)
			api.GET("/tasks/:id", cfg.TaskHandler.GetTask)
			api.GET("/tasks/:id/events", cfg.TaskHandler.StreamSSE)
		}

		// Progress
		if cfg.ProgressHandler != nil {
			api.POST("/courses/:id/progress/start", cfg.ProgressHandler.Start)
			api.GET("/courses/:id/progress", cfg.ProgressHandler.Get)
			api.POST("/courses/:id/progress/lessons/:index/complete", cfg.ProgressHandler.MarkComplete)
			api.POST("/courses/:id/progress/lessons/:index/time", cfg.ProgressHandler.RecordTime)
		}
	}

	if cfg.TaskHandler != nil {
		protected.GET("/ws/tasks/:id", cfg.TaskHandler.StreamWS)
	}

	return r
}
