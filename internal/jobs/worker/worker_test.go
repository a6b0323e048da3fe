package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	repojobs "github.com/yungbote/recollection-backend/internal/data/repos/jobs"
	"github.com/yungbote/recollection-backend/internal/data/repos/testutil"
	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/jobs/runtime"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
)

type terminalSink chan jobs.TaskEvent

func (s terminalSink) Publish(ev jobs.TaskEvent) {
	if ev.Event.Terminal() {
		s <- ev
	}
}

type funcHandler struct {
	typ string
	run func(*runtime.Context) error
}

func (h funcHandler) Type() string                 { return h.typ }
func (h funcHandler) Run(c *runtime.Context) error { return h.run(c) }

func newPending(t *testing.T, repo repojobs.TaskRepo, taskType string) *types.TaskRecord {
	t.Helper()
	now := time.Now().UTC()
	task := &types.TaskRecord{OwnerID: uuid.New(), TaskType: taskType, Status: jobs.TaskPending, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(dbctx.Context{Ctx: context.Background()}, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func waitTerminal(t *testing.T, sink terminalSink) jobs.TaskEvent {
	t.Helper()
	select {
	case ev := <-sink:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a terminal event")
		return jobs.TaskEvent{}
	}
}

func TestWorkerRunsHandlers(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repojobs.NewTaskRepo(db, log)
	sink := make(terminalSink, 8)

	reg, err := runtime.NewRegistry(
		funcHandler{typ: "ok", run: func(c *runtime.Context) error {
			c.Progress("working", 50)
			return c.Succeed(map[string]string{"done": "yes"})
		}},
		funcHandler{typ: "boom", run: func(*runtime.Context) error {
			panic("secret internal detail")
		}},
		funcHandler{typ: "lazy", run: func(*runtime.Context) error { return nil }},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(log, repo, reg, sink, Config{Concurrency: 1})
	w.Start(ctx)
	defer func() {
		cancel()
		w.Wait()
	}()

	cases := []struct {
		taskType string
		status   jobs.TaskStatus
		message  string
	}{
		{"ok", jobs.TaskSuccess, ""},
		{"boom", jobs.TaskFailure, "internal error"},
		{"lazy", jobs.TaskFailure, "internal error"},
		{"unregistered", jobs.TaskFailure, "internal error"},
	}
	for _, tc := range cases {
		task := newPending(t, repo, tc.taskType)
		if err := w.Enqueue(task.TaskID); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ev := waitTerminal(t, sink)
		if ev.TaskID != task.TaskID.String() || ev.Status != tc.status {
			t.Fatalf("%s: want status=%s got=%+v", tc.taskType, tc.status, ev)
		}
		stored, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, task.TaskID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.Status != tc.status {
			t.Fatalf("%s stored status: want=%s got=%s", tc.taskType, tc.status, stored.Status)
		}
		if tc.message != "" && (stored.ErrorMessage == nil || *stored.ErrorMessage != tc.message) {
			t.Fatalf("%s error_message: want=%q got=%v", tc.taskType, tc.message, stored.ErrorMessage)
		}
	}
}

// seedRunning stores a task that some run claimed, with its last heartbeat at beat.
func seedRunning(t *testing.T, repo repojobs.TaskRepo, taskType string, beat time.Time) *types.TaskRecord {
	t.Helper()
	task := newPending(t, repo, taskType)
	runner := uuid.New()
	task.Status = jobs.TaskProgress
	task.ProgressPercent = 30
	task.StartedAt = &beat
	task.UpdatedAt = beat
	task.RunnerID = &runner
	if ok, err := repo.Claim(dbctx.Context{Ctx: context.Background()}, task); err != nil || !ok {
		t.Fatalf("seed running task: ok=%v err=%v", ok, err)
	}
	return task
}

func TestWorkerRecoversUnfinishedTasks(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repojobs.NewTaskRepo(db, log)
	sink := make(terminalSink, 8)

	pendingTask := newPending(t, repo, "ok")
	abandoned := seedRunning(t, repo, "ok", time.Now().UTC().Add(-time.Hour))
	live := seedRunning(t, repo, "ok", time.Now().UTC())

	reg, err := runtime.NewRegistry(funcHandler{typ: "ok", run: func(c *runtime.Context) error {
		c.Progress("working", 50)
		return c.Succeed(nil)
	}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(log, repo, reg, sink, Config{Concurrency: 1})
	w.Start(ctx)
	defer func() {
		cancel()
		w.Wait()
	}()

	got := map[string]jobs.TaskStatus{}
	for i := 0; i < 2; i++ {
		ev := waitTerminal(t, sink)
		got[ev.TaskID] = ev.Status
	}
	if got[pendingTask.TaskID.String()] != jobs.TaskSuccess {
		t.Fatalf("pending task should be rerun: %v", got)
	}
	if got[abandoned.TaskID.String()] != jobs.TaskFailure {
		t.Fatalf("task without heartbeat should fail: %v", got)
	}
	stored, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, live.TaskID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != jobs.TaskProgress {
		t.Fatalf("a task another process is running must be left alone: status=%s", stored.Status)
	}
}

func TestWorkersSharingOneStore(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repojobs.NewTaskRepo(db, log)
	sink := make(terminalSink, 8)

	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	reg, err := runtime.NewRegistry(funcHandler{typ: "slow", run: func(c *runtime.Context) error {
		runs.Add(1)
		c.Progress("working", 30)
		close(started)
		<-release
		return c.Succeed(map[string]string{"done": "yes"})
	}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := NewWorker(log, repo, reg, sink, Config{Concurrency: 1})
	second := NewWorker(log, repo, reg, sink, Config{Concurrency: 1})
	first.Start(ctx)
	defer func() {
		cancel()
		first.Wait()
		second.Wait()
	}()

	task := newPending(t, repo, "slow")
	if err := first.Enqueue(task.TaskID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("task never started")
	}

	// A second process starting mid-run must neither fail nor rerun the task.
	second.Start(ctx)
	if err := second.Enqueue(task.TaskID); err != nil {
		t.Fatalf("Enqueue on second worker: %v", err)
	}
	stored, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, task.TaskID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != jobs.TaskProgress {
		t.Fatalf("running task after second start: want=%s got=%s", jobs.TaskProgress, stored.Status)
	}

	close(release)
	ev := waitTerminal(t, sink)
	if ev.TaskID != task.TaskID.String() || ev.Status != jobs.TaskSuccess {
		t.Fatalf("terminal event: %+v", ev)
	}
	if n := runs.Load(); n != 1 {
		t.Fatalf("handler runs: want=1 got=%d", n)
	}
}

func TestEnqueueDoesNotBlock(t *testing.T) {
	reg, _ := runtime.NewRegistry()
	w := NewWorker(testutil.Logger(t), nil, reg, nil, Config{QueueSize: 1})
	if err := w.Enqueue(uuid.New()); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := w.Enqueue(uuid.New()); err != ErrQueueFull {
		t.Fatalf("second Enqueue: want=%v got=%v", ErrQueueFull, err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	h := funcHandler{typ: "ok", run: func(*runtime.Context) error { return nil }}
	if _, err := runtime.NewRegistry(h, h); err == nil {
		t.Fatalf("duplicate task_type should be rejected")
	}
	if _, err := runtime.NewRegistry(funcHandler{typ: " "}); err == nil {
		t.Fatalf("empty task_type should be rejected")
	}
	reg, err := runtime.NewRegistry(funcHandler{typ: "b"}, funcHandler{typ: "a"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := reg.Types(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Types: want=[a b] got=%v", got)
	}
}
