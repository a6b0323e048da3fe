package app

import (
	"fmt"
	"time"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	apphttp "github.com/yungbote/recollection-backend/internal/http"
	httpH "github.com/yungbote/recollection-backend/internal/http/handlers"
	httpMW "github.com/yungbote/recollection-backend/internal/http/middleware"
	"github.com/yungbote/recollection-backend/internal/jobs/pipeline/coursegen"
	"github.com/yungbote/recollection-backend/internal/jobs/runtime"
	"github.com/yungbote/recollection-backend/internal/jobs/worker"
	"github.com/yungbote/recollection-backend/internal/modules/learning/analysis"
	"github.com/yungbote/recollection-backend/internal/modules/learning/generator"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
	"github.com/yungbote/recollection-backend/internal/platform/openai"
	"github.com/yungbote/recollection-backend/internal/realtime"
	"github.com/yungbote/recollection-backend/internal/realtime/bus"
	"github.com/yungbote/recollection-backend/internal/services"
)

// NewGenerator builds the course generator with one LLM client per stage.
func NewGenerator(log *logger.Logger, cfg LLMConfig, cache generator.AnalysisCache) (*generator.Generator, error) {
	base, err := openai.NewClient(log, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	analysisLLM := openai.WithModel(base, cfg.Tasks.Analysis.Model)
	return generator.New(log, generator.Deps{
		Analyzer:  analysis.NewAnalyzer(log, analysisLLM),
		Cache:     cache,
		Lessons:   openai.WithModel(base, cfg.Tasks.LessonStructure.Model),
		Takeaways: openai.WithModel(base, cfg.Tasks.Takeaways.Model),
	}, generator.Config{
		AnalysisTimeout:     cfg.Tasks.Analysis.Timeout(),
		LessonTimeout:       cfg.Tasks.LessonStructure.Timeout(),
		TakeawayTimeout:     cfg.Tasks.Takeaways.Timeout(),
		AnalysisConcurrency: cfg.AnalysisConcurrency,
	}), nil
}

// NewAnalyzer builds a standalone content analyzer for the analysis stage model.
func NewAnalyzer(log *logger.Logger, cfg LLMConfig) (analysis.Analyzer, error) {
	base, err := openai.NewClient(log, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	return analysis.NewAnalyzer(log, openai.WithModel(base, cfg.Tasks.Analysis.Model)), nil
}

func (a *App) wire() error {
	log := a.Log
	cfg := a.Cfg

	log.Info("Wiring repos...")
	a.Repos = repos.New(a.DB, log)

	a.Hub = realtime.NewHub(log, a.Repos.Task, cfg.HubBufferSize)
	if cfg.Redis.Addr != "" {
		b, err := bus.NewRedisBus(log, cfg.Redis)
		if err != nil {
			return fmt.Errorf("init redis task bus: %w", err)
		}
		a.Bus = b
	}
	notify := bus.NewEmitter(log, a.Bus, a.Hub)

	log.Info("Wiring course pipeline...")
	gen, err := NewGenerator(log, cfg.LLM, coursegen.AnalysisCache{Repo: a.Repos.Analysis})
	if err != nil {
		return err
	}
	registry, err := runtime.NewRegistry(coursegen.New(log, a.DB, a.Repos.Content, a.Repos.Course, gen))
	if err != nil {
		return err
	}
	a.Worker = worker.NewWorker(log, a.Repos.Task, registry, notify, worker.Config{
		Concurrency:       cfg.WorkerConcurrency,
		QueueSize:         cfg.TaskQueueSize,
		HeartbeatInterval: time.Duration(cfg.TaskHeartbeatSeconds) * time.Second,
		StaleAfter:        time.Duration(cfg.TaskStaleSeconds) * time.Second,
	})

	log.Info("Wiring services...")
	contentSvc := services.NewContentService(log, a.Repos.Content)
	courseSvc := services.NewCourseService(log, a.Repos.Course)
	generationSvc := services.NewGenerationService(log, a.Repos.Content, a.Repos.Task, a.Worker, notify)
	tracker := services.NewProgressTracker(log, a.Repos.Course, a.Repos.Progress)

	sqlDB, err := a.DB.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	log.Info("Wiring router...")
	a.Server = apphttp.NewServer(apphttp.RouterConfig{
		Log:             log,
		ServiceName:     serviceName,
		CORSOrigins:     cfg.CORSOrigins,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
		HealthHandler:   httpH.NewHealthHandler(sqlDB),
		ContentHandler:  httpH.NewContentHandler(contentSvc),
		CourseHandler:   httpH.NewCourseHandler(courseSvc),
		TaskHandler:     httpH.NewTaskHandler(log, generationSvc, a.Hub, cfg.CORSOrigins),
		ProgressHandler: httpH.NewProgressHandler(tracker),
	})
	return nil
}
