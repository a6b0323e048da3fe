package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/ctxutil"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// Notifier receives every state change of a task after it is persisted.
type Notifier interface {
	Publish(ev jobs.TaskEvent)
}

/*
runtime.Context is the execution handle for a single task run.
It owns:
	- The in-memory task_record row (the only writer while the run lasts)
	- Persistence of every lifecycle change
	- Notification of subscribers
Every change follows the same order: apply the transition to a clone, persist
it, adopt the clone, then notify. A rejected transition or a row that is already
terminal in storage leaves both memory and subscribers untouched.
*Handlers never touch task_record directly. They must go through this object.*
*/
type Context struct {
	Ctx    context.Context
	Repo   repos.TaskRepo
	Notify Notifier

	log     *logger.Logger
	now     func() time.Time
	taskID  uuid.UUID
	ownerID uuid.UUID
	runner  uuid.UUID
	mu      sync.Mutex
	task    *types.TaskRecord
	payload map[string]any
}

type saveFunc func(dbc dbctx.Context, next *types.TaskRecord) (bool, error)

/*
NewContext decodes the task payload eagerly so handlers can read inputs through
Payload()/PayloadUUID(). A malformed payload yields an empty map; handlers
validate their own required fields.
*/
func NewContext(ctx context.Context, task *types.TaskRecord, repo repos.TaskRepo, notify Notifier, baseLog *logger.Logger) *Context {
	c := &Context{
		Ctx:     ctxutil.Default(ctx),
		Repo:    repo,
		Notify:  notify,
		log:     baseLog.With("task_id", task.TaskID.String(), "task_type", task.TaskType),
		now:     func() time.Time { return time.Now().UTC() },
		taskID:  task.TaskID,
		ownerID: task.OwnerID,
		runner:  uuid.New(),
		task:    task.Clone(),
	}
	c.payload = decodePayload(task.Payload)
	c.applyTraceData()
	return c
}

func decodePayload(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func (c *Context) applyTraceData() {
	traceID := strings.TrimSpace(fmt.Sprint(c.payload["trace_id"]))
	reqID := strings.TrimSpace(fmt.Sprint(c.payload["request_id"]))
	if _, ok := c.payload["trace_id"]; !ok {
		traceID = ""
	}
	if _, ok := c.payload["request_id"]; !ok {
		reqID = ""
	}
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
}

// Logger is scoped to this task.
func (c *Context) Logger() *logger.Logger { return c.log }

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	return c.payload
}

// PayloadUUID returns (uuid, true) when key holds a parseable, non-nil UUID.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.payload[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// PayloadUUIDs reads a JSON array of UUID strings. Any unparseable element fails the whole read.
func (c *Context) PayloadUUIDs(key string) ([]uuid.UUID, error) {
	raw, ok := c.payload[key].([]any)
	if !ok {
		return nil, fmt.Errorf("payload %q is not a list", key)
	}
	out := make([]uuid.UUID, 0, len(raw))
	for i, v := range raw {
		id, err := uuid.Parse(fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("payload %q[%d]: %w", key, i, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// Snapshot returns a copy of the current record.
func (c *Context) Snapshot() *types.TaskRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task.Clone()
}

func (c *Context) TaskID() uuid.UUID  { return c.taskID }
func (c *Context) OwnerID() uuid.UUID { return c.ownerID }

/*
Start claims the task for this run and moves it from PENDING to STARTED.
It returns ErrInvalidTransition when another run already claimed it.
*/
func (c *Context) Start() error {
	return c.apply(jobs.EventStatus, func(t *types.TaskRecord, now time.Time) error {
		if err := StartTask(t, now); err != nil {
			return err
		}
		runner := c.runner
		t.RunnerID = &runner
		t.HeartbeatAt = &now
		return nil
	}, c.claim)
}

// Heartbeat marks the run alive. It reports false once the task is no longer held by this run.
func (c *Context) Heartbeat() (bool, error) {
	if c.Repo == nil {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Ctx), 10*time.Second)
	defer cancel()
	return c.Repo.Heartbeat(dbctx.Context{Ctx: ctx}, c.taskID, c.runner, c.now())
}

/*
Progress publishes a checkpoint. Regressions and reports after a terminal state
are dropped with a warning; the run itself keeps going.
*/
func (c *Context) Progress(step string, pct int) {
	if err := c.apply(jobs.EventProgress, func(t *types.TaskRecord, now time.Time) error {
		return ReportProgress(t, step, pct, now)
	}, c.save); err != nil {
		c.log.Warn("Progress update rejected", "step", step, "pct", pct, "error", err)
	}
}

/*
Succeed marks the task SUCCESS with progress 100 and stores result as JSON.
It returns an error when the transition is rejected or persisting fails so the
caller can decide how to surface it.
*/
func (c *Context) Succeed(result any) error {
	return c.apply(jobs.EventCompleted, func(t *types.TaskRecord, now time.Time) error {
		return SucceedTask(t, result, now)
	}, c.save)
}

/*
SucceedWith runs write and the SUCCESS transition in one transaction on db.
write returns the task result. When the transition is refused the
transaction rolls back, so nothing write stored survives.
*/
func (c *Context) SucceedWith(db *gorm.DB, write func(dbc dbctx.Context) (any, error)) error {
	c.mu.Lock()
	next := c.task.Clone()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Ctx), 30*time.Second)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		result, err := write(dbc)
		if err != nil {
			return err
		}
		if err := SucceedTask(next, result, c.now()); err != nil {
			return err
		}
		return c.save(dbc, next)
	})
	cancel()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.task = next
	ev := next.Event(jobs.EventCompleted)
	c.mu.Unlock()

	if c.Notify != nil {
		c.Notify.Publish(ev)
	}
	return nil
}

/*
Fail records a terminal failure. The stored message is the human rendering of
err; the full error chain is only logged.
*/
func (c *Context) Fail(step string, err error) {
	msg := apperr.Message(err)
	if msg == "" {
		msg = "internal error"
	}
	c.log.Error("Task failed", "step", step, "error", err)
	if applyErr := c.apply(jobs.EventFailed, func(t *types.TaskRecord, now time.Time) error {
		return FailTask(t, step, msg, now)
	}, c.save); applyErr != nil {
		c.log.Warn("Failure not recorded", "step", step, "error", applyErr)
	}
}

/*
Reap fails a task whose run stopped heartbeating before staleBefore. The write
is refused when a heartbeat arrived in the meantime or the task finished.
*/
func (c *Context) Reap(step string, err error, staleBefore time.Time) error {
	if c.Repo == nil {
		return fmt.Errorf("reap task %s: no task store", c.taskID)
	}
	msg := apperr.Message(err)
	if msg == "" {
		msg = "internal error"
	}
	applyErr := c.apply(jobs.EventFailed, func(t *types.TaskRecord, now time.Time) error {
		return FailTask(t, step, msg, now)
	}, func(dbc dbctx.Context, next *types.TaskRecord) error {
		return persist(dbc, next, func(dbc dbctx.Context, t *types.TaskRecord) (bool, error) {
			return c.Repo.FailStale(dbc, t, staleBefore)
		}, "no longer stale")
	})
	if applyErr == nil {
		c.log.Warn("Task reaped", "step", step, "error", err)
	}
	return applyErr
}

func (c *Context) claim(dbc dbctx.Context, next *types.TaskRecord) error {
	if c.Repo == nil {
		return nil
	}
	return persist(dbc, next, c.Repo.Claim, "claimed by another run")
}

func (c *Context) save(dbc dbctx.Context, next *types.TaskRecord) error {
	if c.Repo == nil {
		return nil
	}
	return persist(dbc, next, c.Repo.SaveIfOwner, "terminal or held by another run")
}

func persist(dbc dbctx.Context, next *types.TaskRecord, fn saveFunc, refused string) error {
	ok, err := fn(dbc, next)
	if err != nil {
		return fmt.Errorf("persist task %s: %w", next.TaskID, err)
	}
	if !ok {
		return fmt.Errorf("%w: stored task %s is %s", apperr.ErrInvalidTransition, next.TaskID, refused)
	}
	return nil
}

func (c *Context) apply(kind jobs.EventKind, fn func(t *types.TaskRecord, now time.Time) error, save func(dbctx.Context, *types.TaskRecord) error) error {
	c.mu.Lock()
	next := c.task.Clone()
	if err := fn(next, c.now()); err != nil {
		c.mu.Unlock()
		return err
	}
	// Persist with a detached context so a cancelled run can still record its failure.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Ctx), 10*time.Second)
	err := save(dbctx.Context{Ctx: ctx}, next)
	cancel()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.task = next
	ev := next.Event(kind)
	c.mu.Unlock()

	if c.Notify != nil {
		c.Notify.Publish(ev)
	}
	return nil
}
