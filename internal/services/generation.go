package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/jobs/pipeline/coursegen"
	"github.com/yungbote/recollection-backend/internal/jobs/runtime"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/ctxutil"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

const maxContentsPerCourse = 20

// TaskQueue hands PENDING tasks to the worker pool.
type TaskQueue interface {
	Enqueue(taskID uuid.UUID) error
}

// GenerationService creates course generation tasks and answers task queries.
type GenerationService interface {
	EnqueueForRequestUser(dbc dbctx.Context, contentIDs []uuid.UUID) (*types.TaskRecord, error)
	GetTaskForRequestUser(dbc dbctx.Context, taskID uuid.UUID) (*types.TaskRecord, error)
	ListTasksForRequestUser(dbc dbctx.Context, limit int) ([]*types.TaskRecord, error)
}

type generationService struct {
	log         *logger.Logger
	contentRepo repos.ContentRepo
	taskRepo    repos.TaskRepo
	queue       TaskQueue
	notify      runtime.Notifier
}

func NewGenerationService(
	baseLog *logger.Logger,
	contentRepo repos.ContentRepo,
	taskRepo repos.TaskRepo,
	queue TaskQueue,
	notify runtime.Notifier,
) GenerationService {
	return &generationService{
		log:         baseLog.With("service", "GenerationService"),
		contentRepo: contentRepo,
		taskRepo:    taskRepo,
		queue:       queue,
		notify:      notify,
	}
}

func dedupIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

/*
EnqueueForRequestUser creates a PENDING course generation task:
	- content ids are deduplicated keeping first occurrence
	- every content must exist and belong to the caller
	- the trace of the request is copied into the task payload
The task is persisted before it is queued. When the queue rejects it the task is
failed at once so no record stays PENDING forever.
*/
func (s *generationService) EnqueueForRequestUser(dbc dbctx.Context, contentIDs []uuid.UUID) (*types.TaskRecord, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	ids := dedupIDs(contentIDs)
	if len(ids) == 0 {
		return nil, apperr.Validation("generate course", "content_ids must name at least one content")
	}
	if len(ids) > maxContentsPerCourse {
		return nil, apperr.Validation("generate course", "at most %d contents per course", maxContentsPerCourse)
	}

	contents, err := s.contentRepo.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range contents {
		if c.OwnerID != userID {
			return nil, apperr.ErrNotFound
		}
	}

	var traceID, requestID string
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		traceID, requestID = td.TraceID, td.RequestID
	}
	payload, err := json.Marshal(coursegen.Payload(ids, traceID, requestID))
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}

	now := time.Now().UTC()
	task := &types.TaskRecord{
		TaskID:    uuid.New(),
		OwnerID:   userID,
		TaskType:  jobs.TaskTypeCourseGenerate,
		Status:    jobs.TaskPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.taskRepo.Create(dbc, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if s.notify != nil {
		s.notify.Publish(task.Snapshot())
	}

	if err := s.queue.Enqueue(task.TaskID); err != nil {
		cause := apperr.Unavailable("schedule task", err)
		jc := runtime.NewContext(dbc.Ctx, task, s.taskRepo, s.notify, s.log)
		if startErr := jc.Start(); startErr == nil {
			jc.Fail("queued", cause)
		}
		s.log.Warn("Task rejected by queue", "task_id", task.TaskID, "error", err)
		return nil, cause
	}

	s.log.Info("Course generation queued", "task_id", task.TaskID, "owner_id", userID, "contents", len(ids))
	return task, nil
}

func (s *generationService) GetTaskForRequestUser(dbc dbctx.Context, taskID uuid.UUID) (*types.TaskRecord, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.taskRepo.GetByID(dbc, taskID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != userID {
		return nil, apperr.ErrNotFound
	}
	return t, nil
}

func (s *generationService) ListTasksForRequestUser(dbc dbctx.Context, limit int) ([]*types.TaskRecord, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	return s.taskRepo.ListByOwner(dbc, userID, clampLimit(limit))
}
