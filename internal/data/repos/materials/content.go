package materials

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/recollection-backend/internal/domain"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

type ContentRepo interface {
	Create(dbc dbctx.Context, c *types.Content) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Content, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Content, error)
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return &contentRepo{db: db, log: baseLog.With("repo", "ContentRepo")}
}

func (r *contentRepo) Create(dbc dbctx.Context, c *types.Content) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(c).Error
}

func (r *contentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Content
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, apperr.ErrNotFound
	}
	return &out, nil
}

// GetByIDs returns the contents in the order of ids; any missing id is ErrNotFound.
func (r *contentRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Content, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return []*types.Content{}, nil
	}
	var rows []*types.Content
	if err := transaction.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Content, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]*types.Content, 0, len(ids))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("content %s: %w", id, apperr.ErrNotFound)
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *contentRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Content, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Where("owner_id = ?", ownerID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Content
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
