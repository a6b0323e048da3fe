package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	types "github.com/yungbote/recollection-backend/internal/domain"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

type CourseService interface {
	GetForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	ListForRequestUser(dbc dbctx.Context, limit int) ([]*types.Course, error)
}

type courseService struct {
	log  *logger.Logger
	repo repos.CourseRepo
}

func NewCourseService(baseLog *logger.Logger, repo repos.CourseRepo) CourseService {
	return &courseService{
		log:  baseLog.With("service", "CourseService"),
		repo: repo,
	}
}

func (s *courseService) GetForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != userID {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

// ListForRequestUser returns the caller's courses, newest first.
func (s *courseService) ListForRequestUser(dbc dbctx.Context, limit int) ([]*types.Course, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByOwner(dbc, userID, clampLimit(limit))
}
