package progress

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CourseProgress is one user's advancement through one course.
// (course_id, user_id) is unique.
type CourseProgress struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID          uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_course_progress_pair" json:"course_id"`
	UserID            uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_course_progress_pair" json:"user_id"`
	IsStarted         bool             `gorm:"not null;default:false" json:"is_started"`
	IsCompleted       bool             `gorm:"not null;default:false" json:"is_completed"`
	CompletionPercent int              `gorm:"not null;default:0" json:"completion_percent"`
	StartedAt         *time.Time       `json:"started_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at"`
	LastAccessedAt    *time.Time       `json:"last_accessed_at,omitempty"`
	Lessons           []LessonProgress `gorm:"foreignKey:CourseProgressID" json:"lesson_progress"`
	CreatedAt         time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"not null" json:"updated_at"`
}

func (CourseProgress) TableName() string { return "course_progress" }

func (p *CourseProgress) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type LessonProgress struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CourseProgressID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_lesson_progress_slot" json:"course_progress_id"`
	LessonIndex            int        `gorm:"not null;uniqueIndex:idx_lesson_progress_slot" json:"lesson_index"`
	LessonTitle            string     `json:"lesson_title"`
	IsCompleted            bool       `gorm:"not null;default:false" json:"is_completed"`
	CompletedManually      bool       `gorm:"not null;default:false" json:"completed_manually"`
	CompletedAutomatically bool       `gorm:"not null;default:false" json:"completed_automatically"`
	TimeSpentSeconds       int        `gorm:"not null;default:0" json:"time_spent_seconds"`
	CompletedAt            *time.Time `json:"completed_at"`
	LastAccessedAt         *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt              time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"not null" json:"updated_at"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }

func (l *LessonProgress) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Lesson returns the progress slot for a lesson index, or nil.
func (p *CourseProgress) Lesson(index int) *LessonProgress {
	for i := range p.Lessons {
		if p.Lessons[i].LessonIndex == index {
			return &p.Lessons[i]
		}
	}
	return nil
}

// LessonMap indexes lesson progress by lesson index.
func (p *CourseProgress) LessonMap() map[int]*LessonProgress {
	out := make(map[int]*LessonProgress, len(p.Lessons))
	for i := range p.Lessons {
		out[p.Lessons[i].LessonIndex] = &p.Lessons[i]
	}
	return out
}

// SortLessons orders lesson slots by index.
func (p *CourseProgress) SortLessons() {
	sort.Slice(p.Lessons, func(i, j int) bool { return p.Lessons[i].LessonIndex < p.Lessons[j].LessonIndex })
}

// Recompute derives completion_percent (floored) and course completion from the lesson slots.
// completed_at is set only on the first transition to complete.
func (p *CourseProgress) Recompute(now time.Time) {
	total := len(p.Lessons)
	if total == 0 {
		p.CompletionPercent = 0
		return
	}
	done := 0
	for _, l := range p.Lessons {
		if l.IsCompleted {
			done++
		}
	}
	p.CompletionPercent = done * 100 / total
	if done == total && !p.IsCompleted {
		p.IsCompleted = true
		t := now
		p.CompletedAt = &t
	}
}
