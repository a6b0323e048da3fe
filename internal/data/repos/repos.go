package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/recollection-backend/internal/data/repos/jobs"
	"github.com/yungbote/recollection-backend/internal/data/repos/learning"
	"github.com/yungbote/recollection-backend/internal/data/repos/materials"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

type ContentRepo = materials.ContentRepo
type AnalysisRepo = materials.AnalysisRepo

type CourseRepo = learning.CourseRepo
type ProgressRepo = learning.ProgressRepo

type TaskRepo = jobs.TaskRepo

type Repos struct {
	Content  ContentRepo
	Analysis AnalysisRepo
	Course   CourseRepo
	Progress ProgressRepo
	Task     TaskRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Content:  materials.NewContentRepo(db, log),
		Analysis: materials.NewAnalysisRepo(db, log),
		Course:   learning.NewCourseRepo(db, log),
		Progress: learning.NewProgressRepo(db, log),
		Task:     jobs.NewTaskRepo(db, log),
	}
}
