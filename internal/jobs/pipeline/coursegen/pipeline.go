package coursegen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	"github.com/yungbote/recollection-backend/internal/domain/content"
	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/jobs/runtime"
	"github.com/yungbote/recollection-backend/internal/modules/learning/generator"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// Generator is the course pipeline as seen by the task handler.
type Generator interface {
	Generate(ctx context.Context, contents []*content.Content, analyzed []*content.AnalyzedContent, report generator.ReportFunc) (*course.Course, error)
}

// Result is stored on the task at SUCCESS.
type Result struct {
	CourseID string `json:"course_id"`
}

const stepLoad = "loading content"

type Pipeline struct {
	log         *logger.Logger
	db          *gorm.DB
	contentRepo repos.ContentRepo
	courseRepo  repos.CourseRepo
	gen         Generator
}

func New(baseLog *logger.Logger, db *gorm.DB, contentRepo repos.ContentRepo, courseRepo repos.CourseRepo, gen Generator) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", jobs.TaskTypeCourseGenerate),
		db:          db,
		contentRepo: contentRepo,
		courseRepo:  courseRepo,
		gen:         gen,
	}
}

func (p *Pipeline) Type() string { return jobs.TaskTypeCourseGenerate }

/*
Run executes one generation task:
	- Loads the contents named by payload.content_ids, in order
	- Runs the generator, forwarding every stage checkpoint as task progress
	- Persists the course (owner and task id attached) and the SUCCESS
	  transition in one transaction
Any failure ends the task in FAILURE and nothing is persisted. A run that lost
its claim on the task rolls the course back.
*/
func (p *Pipeline) Run(jc *runtime.Context) error {
	ctx := jc.Ctx

	ids, err := jc.PayloadUUIDs("content_ids")
	if err == nil && len(ids) == 0 {
		err = fmt.Errorf("no content ids")
	}
	if err != nil {
		jc.Fail("validate", apperr.Validation("validate payload", "%v", err))
		return nil
	}

	contents, err := p.contentRepo.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		jc.Fail(stepLoad, apperr.Load("load content", err))
		return nil
	}

	var mu sync.Mutex
	step := stepLoad
	report := func(label string, pct int) {
		mu.Lock()
		step = label
		mu.Unlock()
		jc.Progress(label, pct)
	}

	c, err := p.gen.Generate(ctx, contents, nil, report)
	if err != nil {
		mu.Lock()
		failed := step
		mu.Unlock()
		jc.Fail(failed, err)
		return nil
	}

	taskID := jc.TaskID()
	now := time.Now().UTC()
	c.OwnerID = jc.OwnerID()
	c.TaskID = &taskID
	c.CreatedAt = now
	c.UpdatedAt = now
	err = jc.SucceedWith(p.db, func(dbc dbctx.Context) (any, error) {
		if err := p.courseRepo.Create(dbc, c); err != nil {
			return nil, &persistError{err: err}
		}
		return Result{CourseID: c.ID.String()}, nil
	})
	var pe *persistError
	switch {
	case err == nil:
		p.log.Info("Course generated", "task_id", taskID, "course_id", c.ID, "lessons", len(c.Lessons))
	case errors.As(err, &pe):
		jc.Fail("saving course", fmt.Errorf("persist course: %w", pe.err))
	case errors.Is(err, apperr.ErrInvalidTransition):
		p.log.Warn("Course discarded, task no longer held by this run", "task_id", taskID, "error", err)
	default:
		jc.Fail("saving course", err)
	}
	return nil
}

type persistError struct{ err error }

func (e *persistError) Error() string { return e.err.Error() }
func (e *persistError) Unwrap() error { return e.err }

// Payload builds the task payload for a generation request.
func Payload(contentIDs []uuid.UUID, traceID, requestID string) map[string]any {
	ids := make([]string, 0, len(contentIDs))
	for _, id := range contentIDs {
		ids = append(ids, id.String())
	}
	out := map[string]any{"content_ids": ids}
	if traceID != "" {
		out["trace_id"] = traceID
	}
	if requestID != "" {
		out["request_id"] = requestID
	}
	return out
}
