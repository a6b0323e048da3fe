package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/yungbote/recollection-backend/internal/data/db"
	"github.com/yungbote/recollection-backend/internal/data/repos"
	apphttp "github.com/yungbote/recollection-backend/internal/http"
	"github.com/yungbote/recollection-backend/internal/jobs/worker"
	"github.com/yungbote/recollection-backend/internal/observability"
	"github.com/yungbote/recollection-backend/internal/platform/envutil"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
	"github.com/yungbote/recollection-backend/internal/realtime"
	"github.com/yungbote/recollection-backend/internal/realtime/bus"
)

const serviceName = "recollection"

type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Cfg    Config
	Repos  repos.Repos
	Hub    *realtime.Hub
	Bus    bus.Bus
	Worker *worker.Worker
	Server *apphttp.Server

	dbs          *db.Service
	cron         *cron.Cron
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

func New() (*App, error) {
	envutil.LoadDotEnv(nil)
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: cfg.Environment,
	}, observability.LoadTraceSettings(log))

	dbs, err := db.Open(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	theDB := dbs.DB()

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		dbs:          dbs,
		otelShutdown: otelShutdown,
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Start launches background work: the bus forwarder, the worker pool and the
// eviction schedule.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Bus != nil {
		if err := a.Bus.StartForwarder(ctx, a.Hub.Publish); err != nil {
			return fmt.Errorf("start task event forwarder: %w", err)
		}
	}
	a.Worker.Start(ctx)

	a.cron = cron.New()
	if _, err := a.Hub.Schedule(a.cron, a.Cfg.TaskEvictSchedule, a.Cfg.TaskRetention()); err != nil {
		return fmt.Errorf("schedule task eviction %q: %w", a.Cfg.TaskEvictSchedule, err)
	}
	a.cron.Start()
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "port", a.Cfg.Port)
	return a.Server.Run(":" + a.Cfg.Port)
}

// Close stops accepting requests, then drains background work. Safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if a.Server != nil {
			if err := a.Server.Shutdown(ctx); err != nil {
				a.Log.Warn("HTTP shutdown failed", "error", err)
			}
		}
		if a.cron != nil {
			<-a.cron.Stop().Done()
		}
		if a.cancel != nil {
			a.cancel()
		}
		if a.Worker != nil {
			a.Worker.Wait()
		}
		if a.Bus != nil {
			_ = a.Bus.Close()
		}
		if a.otelShutdown != nil {
			_ = a.otelShutdown(ctx)
		}
		if a.dbs != nil {
			_ = a.dbs.Close()
		}
		a.Log.Sync()
	})
}
