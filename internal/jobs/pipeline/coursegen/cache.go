package coursegen

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/data/repos"
	"github.com/yungbote/recollection-backend/internal/domain/content"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
)

// AnalysisCache serves the generator's analysis lookups from the analyzed_content table.
type AnalysisCache struct {
	Repo repos.AnalysisRepo
}

func (c AnalysisCache) Get(ctx context.Context, contentID uuid.UUID) (*content.AnalyzedContent, error) {
	return c.Repo.GetByContentID(dbctx.Context{Ctx: ctx}, contentID)
}

func (c AnalysisCache) Put(ctx context.Context, a *content.AnalyzedContent) error {
	return c.Repo.Upsert(dbctx.Context{Ctx: ctx}, a)
}
