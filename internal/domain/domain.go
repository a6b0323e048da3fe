package domain

import (
	"github.com/yungbote/recollection-backend/internal/domain/content"
	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/domain/progress"
)

type (
	Content         = content.Content
	AnalyzedContent = content.AnalyzedContent
	Topic           = content.Topic
	Genre           = content.Genre

	Course             = course.Course
	Lesson             = course.Lesson
	Takeaway           = course.Takeaway
	CompletionCriteria = course.CompletionCriteria

	TaskRecord = jobs.TaskRecord
	TaskStatus = jobs.TaskStatus
	TaskEvent  = jobs.TaskEvent

	CourseProgress = progress.CourseProgress
	LessonProgress = progress.LessonProgress
)

// Models lists every persisted row type, in migration order.
func Models() []any {
	return []any{
		&content.Content{},
		&content.AnalyzedContent{},
		&course.Course{},
		&jobs.TaskRecord{},
		&progress.CourseProgress{},
		&progress.LessonProgress{},
	}
}
