package materials

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// AnalysisRepo is the per-content analysis cache.
type AnalysisRepo interface {
	// GetByContentID returns nil, nil when the content has not been analyzed.
	GetByContentID(dbc dbctx.Context, contentID uuid.UUID) (*types.AnalyzedContent, error)
	Upsert(dbc dbctx.Context, a *types.AnalyzedContent) error
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{db: db, log: baseLog.With("repo", "AnalysisRepo")}
}

func (r *analysisRepo) GetByContentID(dbc dbctx.Context, contentID uuid.UUID) (*types.AnalyzedContent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.AnalyzedContent
	if err := transaction.WithContext(dbc.Ctx).Where("content_id = ?", contentID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ContentID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *analysisRepo) Upsert(dbc dbctx.Context, a *types.AnalyzedContent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"genre", "topics"}),
		}).
		Create(a).Error
}
