package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/jobs/runtime"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

var ErrQueueFull = errors.New("task queue is full")

type Config struct {
	Concurrency int
	QueueSize   int
	// HeartbeatInterval is how often a running task marks itself alive.
	HeartbeatInterval time.Duration
	// StaleAfter is how long a running task may go without a heartbeat before it is reaped.
	StaleAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.QueueSize < 1 {
		c.QueueSize = 256
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * time.Minute
	}
	if c.StaleAfter < 2*c.HeartbeatInterval {
		c.StaleAfter = 2 * c.HeartbeatInterval
	}
	return c
}

// Worker runs queued tasks on a fixed pool of goroutines. Workers in several
// processes may share one database: a task is claimed atomically before it
// runs, so exactly one run anywhere is the writer of its record.
type Worker struct {
	log      *logger.Logger
	repo     repos.TaskRepo
	registry *runtime.Registry
	notify   runtime.Notifier
	cfg      Config

	queue chan uuid.UUID
	wg    sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.TaskRepo, registry *runtime.Registry, notify runtime.Notifier, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		log:      baseLog.With("component", "TaskWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg,
		queue:    make(chan uuid.UUID, cfg.QueueSize),
	}
}

// Enqueue schedules a PENDING task. It never blocks.
func (w *Worker) Enqueue(taskID uuid.UUID) error {
	select {
	case w.queue <- taskID:
		return nil
	default:
		return ErrQueueFull
	}
}

/*
Start recovers tasks and launches the pool.
Recovery:
	- PENDING tasks are queued; whichever process claims one first runs it
	- STARTED/PROGRESS tasks whose heartbeat went stale lost their run and are failed
Stale tasks are also reaped periodically while the pool runs.
The pool stops when ctx is cancelled; Wait blocks until every goroutine returned.
*/
func (w *Worker) Start(ctx context.Context) {
	w.requeuePending(ctx)
	w.reapStale(ctx)
	w.log.Info("Starting task worker pool",
		"concurrency", w.cfg.Concurrency,
		"queue_size", w.cfg.QueueSize,
		"stale_after", w.cfg.StaleAfter.String(),
		"task_types", w.registry.Types(),
	)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.reapLoop(ctx)
	}()
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) requeuePending(ctx context.Context) {
	pending, err := w.repo.ListPending(dbctx.Context{Ctx: ctx})
	if err != nil {
		w.log.Warn("ListPending failed", "error", err)
		return
	}
	for _, t := range pending {
		if err := w.Enqueue(t.TaskID); err != nil {
			w.log.Warn("Could not requeue pending task", "task_id", t.TaskID, "error", err)
		}
	}
	if len(pending) > 0 {
		w.log.Info("Requeued pending tasks", "count", len(pending))
	}
}

func (w *Worker) reapStale(ctx context.Context) {
	before := time.Now().UTC().Add(-w.cfg.StaleAfter)
	stale, err := w.repo.ListStale(dbctx.Context{Ctx: ctx}, before)
	if err != nil {
		w.log.Warn("ListStale failed", "error", err)
		return
	}
	reaped := 0
	for _, t := range stale {
		jc := runtime.NewContext(ctx, t, w.repo, w.notify, w.log)
		cause := apperr.Interrupted("task run", fmt.Errorf("no heartbeat since %s", heartbeatOf(t)))
		if err := jc.Reap("recovery", cause, before); err != nil {
			w.log.Debug("Stale task not reaped", "task_id", t.TaskID, "error", err)
			continue
		}
		reaped++
	}
	if reaped > 0 {
		w.log.Info("Reaped stale tasks", "count", reaped)
	}
}

func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.StaleAfter / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reapStale(ctx)
		}
	}
}

func heartbeatOf(t *types.TaskRecord) string {
	if t.HeartbeatAt == nil {
		return "start"
	}
	return t.HeartbeatAt.Format(time.RFC3339)
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case id := <-w.queue:
			w.process(ctx, workerID, id)
		}
	}
}

func (w *Worker) process(ctx context.Context, workerID int, taskID uuid.UUID) {
	task, err := w.repo.GetByID(dbctx.Context{Ctx: ctx}, taskID)
	if err != nil {
		w.log.Warn("Load task failed", "worker_id", workerID, "task_id", taskID, "error", err)
		return
	}
	if task.Status != jobs.TaskPending {
		w.log.Info("Skipping task that is not pending", "worker_id", workerID, "task_id", taskID, "status", task.Status)
		return
	}

	jc := runtime.NewContext(ctx, task, w.repo, w.notify, w.log)
	if err := jc.Start(); err != nil {
		if errors.Is(err, apperr.ErrInvalidTransition) {
			w.log.Info("Task claimed by another run", "worker_id", workerID, "task_id", taskID)
			return
		}
		w.log.Warn("Start task failed", "worker_id", workerID, "task_id", taskID, "error", err)
		return
	}
	stop := w.keepAlive(jc)
	defer stop()

	h, ok := w.registry.Get(task.TaskType)
	if !ok {
		w.log.Warn("No handler registered for task_type",
			"worker_id", workerID,
			"task_type", task.TaskType,
			"task_id", taskID,
		)
		jc.Fail("dispatch", &missingHandlerError{TaskType: task.TaskType})
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Task handler panic",
					"worker_id", workerID,
					"task_id", taskID,
					"task_type", task.TaskType,
					"panic", r,
				)
				jc.Fail("panic", errFromRecover(r))
			}
		}()

		runErr := h.Run(jc)
		if jc.Snapshot().Status.Terminal() {
			return
		}
		if runErr == nil {
			runErr = errors.New("handler returned without finishing the task")
		}
		// Most handlers call jc.Fail themselves; this is a safety net.
		jc.Fail("run", runErr)
	}()
}

// keepAlive heartbeats jc until the returned func is called.
func (w *Worker) keepAlive(jc *runtime.Context) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				alive, err := jc.Heartbeat()
				if err != nil {
					jc.Logger().Warn("Heartbeat failed", "error", err)
					continue
				}
				if !alive {
					jc.Logger().Warn("Task no longer held by this run")
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

type missingHandlerError struct{ TaskType string }

func (e *missingHandlerError) Error() string { return "no handler registered for task_type=" + e.TaskType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return "panic: unexpected error" }
