package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	types "github.com/yungbote/recollection-backend/internal/domain"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// ProgressTracker records a user's advancement through a finished course.
// Every operation other than Start requires a started course and returns ErrNotFound otherwise.
type ProgressTracker interface {
	Start(dbc dbctx.Context, courseID uuid.UUID) (*types.CourseProgress, error)
	Get(dbc dbctx.Context, courseID uuid.UUID) (*types.CourseProgress, error)
	RecordTime(dbc dbctx.Context, courseID uuid.UUID, lessonIndex int, seconds int) (*types.CourseProgress, error)
	MarkComplete(dbc dbctx.Context, courseID uuid.UUID, lessonIndex int, manual bool) (*types.CourseProgress, error)
}

type progressTracker struct {
	log          *logger.Logger
	courseRepo   repos.CourseRepo
	progressRepo repos.ProgressRepo
	now          func() time.Time
}

func NewProgressTracker(baseLog *logger.Logger, courseRepo repos.CourseRepo, progressRepo repos.ProgressRepo) ProgressTracker {
	return &progressTracker{
		log:          baseLog.With("service", "ProgressTracker"),
		courseRepo:   courseRepo,
		progressRepo: progressRepo,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *progressTracker) ownedCourse(dbc dbctx.Context, courseID, userID uuid.UUID) (*types.Course, error) {
	c, err := s.courseRepo.GetByID(dbc, courseID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != userID {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

/*
Start opens progress for the caller on a course they own.
Repeated calls return the existing record with last_accessed_at refreshed;
no second set of lesson slots is ever created.
*/
func (s *progressTracker) Start(dbc dbctx.Context, courseID uuid.UUID) (*types.CourseProgress, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.ownedCourse(dbc, courseID, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	existing, err := s.progressRepo.GetByPair(dbc, courseID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.touch(dbc, existing, now)
	}

	p := &types.CourseProgress{
		ID:             uuid.New(),
		CourseID:       courseID,
		UserID:         userID,
		IsStarted:      true,
		StartedAt:      &now,
		LastAccessedAt: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, l := range c.Lessons {
		p.Lessons = append(p.Lessons, types.LessonProgress{
			ID:          uuid.New(),
			LessonIndex: l.Order,
			LessonTitle: l.Title,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	p.SortLessons()

	created, err := s.progressRepo.CreateIfAbsent(dbc, p)
	if err != nil {
		return nil, fmt.Errorf("create progress: %w", err)
	}
	if !created {
		// A concurrent Start won the insert.
		existing, err := s.progressRepo.GetByPair(dbc, courseID, userID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, apperr.ErrConflict
		}
		return existing, nil
	}
	s.log.Debug("Course started", "course_id", courseID, "user_id", userID, "lessons", len(p.Lessons))
	return p, nil
}

func (s *progressTracker) touch(dbc dbctx.Context, p *types.CourseProgress, now time.Time) (*types.CourseProgress, error) {
	p.LastAccessedAt = &now
	p.UpdatedAt = now
	if err := s.progressRepo.SaveCourse(dbc, p); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}
	return p, nil
}

func (s *progressTracker) started(dbc dbctx.Context, courseID uuid.UUID) (*types.CourseProgress, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.progressRepo.GetByPair(dbc, courseID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("start the course first: %w", apperr.ErrNotFound)
	}
	return p, nil
}

func (s *progressTracker) Get(dbc dbctx.Context, courseID uuid.UUID) (*types.CourseProgress, error) {
	return s.started(dbc, courseID)
}

// RecordTime accumulates seconds on a lesson and completes it automatically once
// the lesson's completion criteria say time alone is enough.
func (s *progressTracker) RecordTime(dbc dbctx.Context, courseID uuid.UUID, lessonIndex int, seconds int) (*types.CourseProgress, error) {
	if seconds < 0 {
		return nil, apperr.Validation("record time", "seconds must not be negative")
	}
	p, err := s.started(dbc, courseID)
	if err != nil {
		return nil, err
	}
	slot := p.Lesson(lessonIndex)
	if slot == nil {
		return nil, fmt.Errorf("lesson %d: %w", lessonIndex, apperr.ErrNotFound)
	}
	now := s.now()
	if err := s.progressRepo.AddLessonTime(dbc, slot.ID, seconds, now); err != nil {
		return nil, fmt.Errorf("record lesson time: %w", err)
	}

	// Re-read so concurrent increments are counted against the threshold.
	p, err = s.started(dbc, courseID)
	if err != nil {
		return nil, err
	}
	slot = p.Lesson(lessonIndex)
	if slot != nil && !slot.IsCompleted {
		c, err := s.courseRepo.GetByID(dbc, courseID)
		if err != nil {
			return nil, err
		}
		if lesson := c.Lesson(lessonIndex); lesson != nil {
			if limit, ok := lesson.CompletionCriteria.AutoCompleteAfter(); ok && slot.TimeSpentSeconds >= limit {
				if err := s.complete(dbc, slot, true, now); err != nil {
					return nil, err
				}
				s.log.Debug("Lesson completed automatically", "course_id", courseID, "lesson_index", lessonIndex, "time_spent_seconds", slot.TimeSpentSeconds)
			}
		}
	}
	return s.finish(dbc, p, now)
}

// MarkComplete completes a lesson explicitly. Completed lessons are left untouched.
func (s *progressTracker) MarkComplete(dbc dbctx.Context, courseID uuid.UUID, lessonIndex int, manual bool) (*types.CourseProgress, error) {
	p, err := s.started(dbc, courseID)
	if err != nil {
		return nil, err
	}
	slot := p.Lesson(lessonIndex)
	if slot == nil {
		return nil, fmt.Errorf("lesson %d: %w", lessonIndex, apperr.ErrNotFound)
	}
	if slot.IsCompleted {
		return p, nil
	}
	now := s.now()
	if err := s.complete(dbc, slot, !manual, now); err != nil {
		return nil, err
	}
	return s.finish(dbc, p, now)
}

func (s *progressTracker) complete(dbc dbctx.Context, slot *types.LessonProgress, automatic bool, now time.Time) error {
	changed, err := s.progressRepo.CompleteLesson(dbc, slot.ID, automatic, now)
	if err != nil {
		return fmt.Errorf("complete lesson: %w", err)
	}
	if !changed {
		// Completed concurrently; the stored flags win.
		slot.IsCompleted = true
		return nil
	}
	slot.IsCompleted = true
	slot.CompletedAutomatically = automatic
	slot.CompletedManually = !automatic
	slot.CompletedAt = &now
	slot.LastAccessedAt = &now
	return nil
}

func (s *progressTracker) finish(dbc dbctx.Context, p *types.CourseProgress, now time.Time) (*types.CourseProgress, error) {
	p.Recompute(now)
	return s.touch(dbc, p, now)
}
