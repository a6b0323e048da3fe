package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

type ProgressRepo interface {
	// GetByPair returns nil, nil when the user has not started the course.
	GetByPair(dbc dbctx.Context, courseID, userID uuid.UUID) (*types.CourseProgress, error)
	// CreateIfAbsent inserts p with its lesson slots unless a record for the pair exists.
	CreateIfAbsent(dbc dbctx.Context, p *types.CourseProgress) (bool, error)
	AddLessonTime(dbc dbctx.Context, lessonProgressID uuid.UUID, seconds int, at time.Time) error
	// CompleteLesson marks a lesson slot complete unless it already is; ok reports whether it changed.
	CompleteLesson(dbc dbctx.Context, lessonProgressID uuid.UUID, automatic bool, at time.Time) (bool, error)
	SaveCourse(dbc dbctx.Context, p *types.CourseProgress) error
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: baseLog.With("repo", "ProgressRepo")}
}

func (r *progressRepo) GetByPair(dbc dbctx.Context, courseID, userID uuid.UUID) (*types.CourseProgress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.CourseProgress
	err := transaction.WithContext(dbc.Ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("lesson_index ASC") }).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *progressRepo) CreateIfAbsent(dbc dbctx.Context, p *types.CourseProgress) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	created := false
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		res := txx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "course_id"}, {Name: "user_id"}},
				DoNothing: true,
			}).
			Create(p)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		if len(p.Lessons) == 0 {
			return nil
		}
		for i := range p.Lessons {
			p.Lessons[i].CourseProgressID = p.ID
		}
		return txx.Create(&p.Lessons).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *progressRepo) AddLessonTime(dbc dbctx.Context, lessonProgressID uuid.UUID, seconds int, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.LessonProgress{}).
		Where("id = ?", lessonProgressID).
		Updates(map[string]interface{}{
			"time_spent_seconds": gorm.Expr("time_spent_seconds + ?", seconds),
			"last_accessed_at":   at,
			"updated_at":         at,
		}).Error
}

func (r *progressRepo) CompleteLesson(dbc dbctx.Context, lessonProgressID uuid.UUID, automatic bool, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.LessonProgress{}).
		Where("id = ? AND is_completed = ?", lessonProgressID, false).
		Updates(map[string]interface{}{
			"is_completed":            true,
			"completed_manually":      !automatic,
			"completed_automatically": automatic,
			"completed_at":            at,
			"last_accessed_at":        at,
			"updated_at":              at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *progressRepo) SaveCourse(dbc dbctx.Context, p *types.CourseProgress) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit(clause.Associations).Save(p).Error
}
