package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/recollection-backend/internal/domain"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, c *types.Course) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	GetByTaskID(dbc dbctx.Context, taskID uuid.UUID) (*types.Course, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Course, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	repoLog := baseLog.With("repo", "CourseRepo")
	return &courseRepo{db: db, log: repoLog}
}

func (r *courseRepo) Create(dbc dbctx.Context, c *types.Course) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(c).Error
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	return r.first(dbc, "id = ?", id)
}

func (r *courseRepo) GetByTaskID(dbc dbctx.Context, taskID uuid.UUID) (*types.Course, error) {
	return r.first(dbc, "task_id = ?", taskID)
}

func (r *courseRepo) first(dbc dbctx.Context, where string, arg any) (*types.Course, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Course
	if err := transaction.WithContext(dbc.Ctx).Where(where, arg).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, apperr.ErrNotFound
	}
	return &out, nil
}

func (r *courseRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Course, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Course
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
