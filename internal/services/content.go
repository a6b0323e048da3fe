package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	types "github.com/yungbote/recollection-backend/internal/domain"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// ContentService stores content produced by the external loading step.
type ContentService interface {
	CreateForRequestUser(dbc dbctx.Context, c *types.Content) (*types.Content, error)
	GetForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.Content, error)
	ListForRequestUser(dbc dbctx.Context, limit int) ([]*types.Content, error)
}

type contentService struct {
	log  *logger.Logger
	repo repos.ContentRepo
}

func NewContentService(baseLog *logger.Logger, repo repos.ContentRepo) ContentService {
	return &contentService{
		log:  baseLog.With("service", "ContentService"),
		repo: repo,
	}
}

func (s *contentService) CreateForRequestUser(dbc dbctx.Context, c *types.Content) (*types.Content, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.Validation("create content", "content is required")
	}
	if !c.Source.Format.Valid() {
		return nil, apperr.Validation("create content", "unsupported format %q", c.Source.Format)
	}
	if strings.TrimSpace(c.PromptText()) == "" {
		return nil, apperr.Validation("create content", "content has neither text nor summary")
	}
	c.ID = uuid.New()
	c.OwnerID = userID
	c.CreatedAt = time.Now().UTC()
	if err := s.repo.Create(dbc, c); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	s.log.Debug("Content stored", "content_id", c.ID, "owner_id", userID, "format", c.Source.Format)
	return c, nil
}

func (s *contentService) GetForRequestUser(dbc dbctx.Context, id uuid.UUID) (*types.Content, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	// Other users' rows are indistinguishable from missing ones.
	if c.OwnerID != userID {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

func (s *contentService) ListForRequestUser(dbc dbctx.Context, limit int) ([]*types.Content, error) {
	userID, err := requestUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByOwner(dbc, userID, clampLimit(limit))
}
