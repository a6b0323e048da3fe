package materials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/data/repos/testutil"
	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/content"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
)

func TestContentRepoGetByIDsKeepsOrder(t *testing.T) {
	db := testutil.DB(t)
	repo := NewContentRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	owner := uuid.New()

	a := testutil.SeedContent(t, db, owner, "a")
	b := testutil.SeedContent(t, db, owner, "b")

	got, err := repo.GetByIDs(dbc, []uuid.UUID{b.ID, a.ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Fatalf("order not preserved: %v", got)
	}

	if _, err := repo.GetByIDs(dbc, []uuid.UUID{a.ID, uuid.New()}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing id: want ErrNotFound got %v", err)
	}
	if _, err := repo.GetByID(dbc, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetByID missing: want ErrNotFound got %v", err)
	}
}

func TestAnalysisRepoUpsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewAnalysisRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	id := uuid.New()
	if got, err := repo.GetByContentID(dbc, id); err != nil || got != nil {
		t.Fatalf("miss: got=%v err=%v", got, err)
	}

	first := &types.AnalyzedContent{ContentID: id, Genre: content.GenreNews, CreatedAt: time.Now().UTC()}
	if err := repo.Upsert(dbc, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second := &types.AnalyzedContent{
		ContentID: id,
		Genre:     content.GenreTutorial,
		Topics:    []content.Topic{{Name: "Go", Relevance: 1}},
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Upsert(dbc, second); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	got, err := repo.GetByContentID(dbc, id)
	if err != nil || got == nil {
		t.Fatalf("GetByContentID: got=%v err=%v", got, err)
	}
	if got.Genre != content.GenreTutorial || len(got.Topics) != 1 || got.Topics[0].Name != "Go" {
		t.Fatalf("upsert did not overwrite: %+v", got)
	}
}
