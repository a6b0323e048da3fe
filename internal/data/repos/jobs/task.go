package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/recollection-backend/internal/domain"
	jobtypes "github.com/yungbote/recollection-backend/internal/domain/jobs"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

var (
	terminalStatuses = []jobtypes.TaskStatus{jobtypes.TaskSuccess, jobtypes.TaskFailure}
	runningStatuses  = []jobtypes.TaskStatus{jobtypes.TaskStarted, jobtypes.TaskProgress}
)

type TaskRepo interface {
	Create(dbc dbctx.Context, t *types.TaskRecord) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TaskRecord, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.TaskRecord, error)
	ListPending(dbc dbctx.Context) ([]*types.TaskRecord, error)
	// ListStale returns running tasks whose last heartbeat is older than before.
	ListStale(dbc dbctx.Context, before time.Time) ([]*types.TaskRecord, error)
	// Claim writes t only while the stored row is still PENDING. Exactly one
	// caller wins for a given task.
	Claim(dbc dbctx.Context, t *types.TaskRecord) (bool, error)
	// SaveIfOwner writes every mutable field of t while the stored row is not
	// terminal and is held by t.RunnerID (or unclaimed when that is nil).
	SaveIfOwner(dbc dbctx.Context, t *types.TaskRecord) (bool, error)
	Heartbeat(dbc dbctx.Context, taskID, runnerID uuid.UUID, at time.Time) (bool, error)
	// FailStale writes t only while the stored row is running with a heartbeat
	// older than before.
	FailStale(dbc dbctx.Context, t *types.TaskRecord, before time.Time) (bool, error)
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{
		db:  db,
		log: baseLog.With("repo", "TaskRepo"),
	}
}

func (r *taskRepo) Create(dbc dbctx.Context, t *types.TaskRecord) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(t).Error
}

func (r *taskRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TaskRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.TaskRecord
	if err := transaction.WithContext(dbc.Ctx).Where("task_id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.TaskID == uuid.Nil {
		return nil, apperr.ErrNotFound
	}
	return &out, nil
}

func (r *taskRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.TaskRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Where("owner_id = ?", ownerID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.TaskRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taskRepo) ListPending(dbc dbctx.Context) ([]*types.TaskRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.TaskRecord
	if err := transaction.WithContext(dbc.Ctx).
		Where("status = ?", jobtypes.TaskPending).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taskRepo) ListStale(dbc dbctx.Context, before time.Time) ([]*types.TaskRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.TaskRecord
	if err := transaction.WithContext(dbc.Ctx).
		Where("status IN ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)", runningStatuses, before).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taskRepo) Claim(dbc dbctx.Context, t *types.TaskRecord) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if t.RunnerID == nil {
		return false, fmt.Errorf("claim task %s: no runner id", t.TaskID)
	}
	cols := mutableColumns(t)
	cols["runner_id"] = *t.RunnerID
	cols["heartbeat_at"] = t.UpdatedAt
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.TaskRecord{}).
		Where("task_id = ? AND status = ?", t.TaskID, jobtypes.TaskPending).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *taskRepo) SaveIfOwner(dbc dbctx.Context, t *types.TaskRecord) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.TaskRecord{}).
		Where("task_id = ? AND status NOT IN ?", t.TaskID, terminalStatuses)
	if t.RunnerID == nil {
		q = q.Where("runner_id IS NULL")
	} else {
		q = q.Where("runner_id = ?", *t.RunnerID)
	}
	res := q.Updates(mutableColumns(t))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *taskRepo) Heartbeat(dbc dbctx.Context, taskID, runnerID uuid.UUID, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.TaskRecord{}).
		Where("task_id = ? AND runner_id = ? AND status IN ?", taskID, runnerID, runningStatuses).
		Update("heartbeat_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *taskRepo) FailStale(dbc dbctx.Context, t *types.TaskRecord, before time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.TaskRecord{}).
		Where("task_id = ? AND status IN ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)", t.TaskID, runningStatuses, before).
		Updates(mutableColumns(t))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func mutableColumns(t *types.TaskRecord) map[string]interface{} {
	return map[string]interface{}{
		"status":           t.Status,
		"progress_percent": t.ProgressPercent,
		"current_step":     t.CurrentStep,
		"result":           t.Result,
		"error_message":    t.ErrorMessage,
		"started_at":       t.StartedAt,
		"completed_at":     t.CompletedAt,
		"updated_at":       t.UpdatedAt,
	}
}
