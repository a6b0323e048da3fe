package coursegen

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	"github.com/yungbote/recollection-backend/internal/data/repos/testutil"
	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/jobs/runtime"
	"github.com/yungbote/recollection-backend/internal/modules/learning/analysis"
	"github.com/yungbote/recollection-backend/internal/modules/learning/generator"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
)

// routerLLM answers by schema name. lessonErr, when set, is returned for every lesson call.
type routerLLM struct {
	mu        sync.Mutex
	lessonErr error
	calls     map[string]int
}

func (r *routerLLM) GenerateJSON(_ context.Context, _ string, _ string, name string, _ map[string]any) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[name]++
	switch {
	case name == "content_analysis":
		return map[string]any{
			"genre":  "tutorial",
			"topics": []any{map[string]any{"name": "Go", "description": "The language", "relevance": 0.9}},
		}, nil
	case strings.HasSuffix(name, "_lesson_structure"):
		if r.lessonErr != nil {
			return nil, r.lessonErr
		}
		return map[string]any{"lessons": []any{
			map[string]any{
				"title": "Install", "description": "Install the toolchain", "objectives": []any{"install go"},
				"prerequisites": []any{}, "content_sections": []any{}, "estimated_duration_seconds": 300,
			},
			map[string]any{
				"title": "Hello", "description": "Write a program", "objectives": []any{"run hello world"},
				"prerequisites": []any{"Install"}, "content_sections": []any{}, "estimated_duration_seconds": 600,
			},
		}}, nil
	case strings.HasSuffix(name, "_takeaways"):
		return map[string]any{"takeaways": []any{
			map[string]any{"name": "Ship", "description": "Ship a binary", "criteria": []any{"binary runs"}},
		}}, nil
	}
	return nil, apperr.Provider("router", nil)
}

type eventLog struct {
	mu     sync.Mutex
	events []jobs.TaskEvent
}

func (l *eventLog) Publish(ev jobs.TaskEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

type fixture struct {
	db    *gorm.DB
	repos repos.Repos
	llm   *routerLLM
	log   *eventLog
	pipe  *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	rs := repos.New(db, log)
	llm := &routerLLM{}
	gen := generator.New(log, generator.Deps{
		Analyzer: analysis.NewAnalyzer(log, llm),
		Cache:    AnalysisCache{Repo: rs.Analysis},
		Lessons:  llm,
	}, generator.Config{LessonTimeout: time.Second, TakeawayTimeout: time.Second, AnalysisTimeout: time.Second})
	return &fixture{db: db, repos: rs, llm: llm, log: &eventLog{}, pipe: New(log, db, rs.Content, rs.Course, gen)}
}

func (f *fixture) start(t *testing.T, payload map[string]any) *runtime.Context {
	t.Helper()
	raw, _ := json.Marshal(payload)
	now := time.Now().UTC()
	task := &types.TaskRecord{
		OwnerID:   uuid.New(),
		TaskType:  jobs.TaskTypeCourseGenerate,
		Status:    jobs.TaskPending,
		Payload:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.repos.Task.Create(dbctx.Context{Ctx: context.Background()}, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	jc := runtime.NewContext(context.Background(), task, f.repos.Task, f.log, testutil.Logger(t))
	if err := jc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return jc
}

func (f *fixture) run(t *testing.T, payload map[string]any) *types.TaskRecord {
	t.Helper()
	jc := f.start(t, payload)
	if err := f.pipe.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, err := f.repos.Task.GetByID(dbctx.Context{Ctx: context.Background()}, jc.TaskID())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return stored
}

func TestRunPersistsCourseAndSucceeds(t *testing.T) {
	f := newFixture(t)
	c := testutil.SeedContent(t, f.db, uuid.New(), "Install Go and write hello world.")

	task := f.run(t, Payload([]uuid.UUID{c.ID}, "trace-1", ""))
	if task.Status != jobs.TaskSuccess || task.ProgressPercent != 100 {
		t.Fatalf("task: %+v", task)
	}
	var res Result
	if err := json.Unmarshal(task.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	courseID, err := uuid.Parse(res.CourseID)
	if err != nil {
		t.Fatalf("course id: %v", err)
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	saved, err := f.repos.Course.GetByID(dbc, courseID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if saved.OwnerID != task.OwnerID || saved.TaskID == nil || *saved.TaskID != task.TaskID {
		t.Fatalf("course not linked to task: %+v", saved)
	}
	if len(saved.Lessons) != 2 || saved.EstimatedDurationSeconds != 900 || saved.DifficultyLevel != course.DifficultyBeginner {
		t.Fatalf("unexpected course: %+v", saved)
	}

	cached, err := f.repos.Analysis.GetByContentID(dbc, c.ID)
	if err != nil || cached == nil {
		t.Fatalf("analysis should be cached: %v %v", cached, err)
	}

	var pcts []int
	for _, ev := range f.log.events {
		if ev.Event == jobs.EventProgress {
			pcts = append(pcts, *ev.ProgressPercent)
		}
	}
	want := []int{10, 20, 25, 30, 55, 80}
	if len(pcts) != len(want) {
		t.Fatalf("checkpoints: want=%v got=%v", want, pcts)
	}
	for i := range want {
		if pcts[i] != want[i] {
			t.Fatalf("checkpoints: want=%v got=%v", want, pcts)
		}
	}
	last := f.log.events[len(f.log.events)-1]
	if last.Event != jobs.EventCompleted {
		t.Fatalf("last event: want=completed got=%s", last.Event)
	}

	// A second run over the same content reuses the cached analysis.
	before := f.llm.calls["content_analysis"]
	f.run(t, Payload([]uuid.UUID{c.ID}, "", ""))
	if f.llm.calls["content_analysis"] != before {
		t.Fatalf("content analyzed twice")
	}
}

func TestRunFailsOnPersistentSchemaViolation(t *testing.T) {
	f := newFixture(t)
	f.llm.lessonErr = apperr.SchemaViolation("openai tutorial_lesson_structure", nil)
	c := testutil.SeedContent(t, f.db, uuid.New(), "Install Go.")

	task := f.run(t, Payload([]uuid.UUID{c.ID}, "", ""))
	if task.Status != jobs.TaskFailure || task.ErrorMessage == nil {
		t.Fatalf("task: %+v", task)
	}
	if !strings.Contains(*task.ErrorMessage, "lesson structuring") {
		t.Fatalf("error_message should name the stage: %q", *task.ErrorMessage)
	}
	if task.Result != nil && len(task.Result) > 0 {
		t.Fatalf("failed task must not carry a result")
	}

	var n int64
	f.db.Model(&course.Course{}).Count(&n)
	if n != 0 {
		t.Fatalf("no course may be persisted on failure, found %d", n)
	}
	if f.llm.calls["tutorial_lesson_structure"] != 2 {
		t.Fatalf("lesson structuring attempts: want=2 got=%d", f.llm.calls["tutorial_lesson_structure"])
	}
	last := f.log.events[len(f.log.events)-1]
	if last.Event != jobs.EventFailed || last.Error == nil || *last.Error != *task.ErrorMessage {
		t.Fatalf("terminal event: %+v", last)
	}
}

func TestRunRejectsBadPayload(t *testing.T) {
	f := newFixture(t)

	for name, payload := range map[string]map[string]any{
		"missing":   {},
		"empty":     {"content_ids": []string{}},
		"malformed": {"content_ids": []string{"not-a-uuid"}},
	} {
		task := f.run(t, payload)
		if task.Status != jobs.TaskFailure {
			t.Fatalf("%s: want FAILURE got %s", name, task.Status)
		}
	}

	task := f.run(t, Payload([]uuid.UUID{uuid.New()}, "", ""))
	if task.Status != jobs.TaskFailure || task.ErrorMessage == nil || *task.ErrorMessage != "load content failed: content could not be loaded" {
		t.Fatalf("unknown content: %+v", task)
	}
}

func TestRunDiscardsCourseWhenTaskWasReaped(t *testing.T) {
	f := newFixture(t)
	c := testutil.SeedContent(t, f.db, uuid.New(), "Install Go and write hello world.")
	jc := f.start(t, Payload([]uuid.UUID{c.ID}, "", ""))

	dbc := dbctx.Context{Ctx: context.Background()}
	stored, err := f.repos.Task.GetByID(dbc, jc.TaskID())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	reaper := runtime.NewContext(context.Background(), stored, f.repos.Task, nil, testutil.Logger(t))
	cause := apperr.Interrupted("task run", nil)
	if err := reaper.Reap("recovery", cause, time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("Reap: %v", err)
	}

	if err := f.pipe.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var n int64
	f.db.Model(&course.Course{}).Count(&n)
	if n != 0 {
		t.Fatalf("a run that lost its task must not leave a course behind, found %d", n)
	}
	final, err := f.repos.Task.GetByID(dbc, jc.TaskID())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != jobs.TaskFailure || final.CurrentStep == nil || *final.CurrentStep != "recovery" {
		t.Fatalf("reaped task must stay failed: %+v", final)
	}
	if final.Result != nil && len(final.Result) > 0 {
		t.Fatalf("reaped task must not carry a result")
	}
}
