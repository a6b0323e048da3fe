package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/domain/content"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

type fakeLLM struct {
	out    map[string]any
	err    error
	prompt string
}

func (f *fakeLLM) GenerateJSON(_ context.Context, _ string, user string, _ string, _ map[string]any) (map[string]any, error) {
	f.prompt = user
	return f.out, f.err
}

func TestAnalyze(t *testing.T) {
	llm := &fakeLLM{out: map[string]any{
		"genre": "Tutorial",
		"topics": []any{
			map[string]any{"name": "Goroutines", "description": "light threads", "relevance": 0.9},
		},
	}}
	a := NewAnalyzer(logger.Nop(), llm)
	c := &content.Content{ID: uuid.New(), RawText: "how to use goroutines"}

	got, err := a.Analyze(context.Background(), c)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.ContentID != c.ID || got.Genre != content.GenreTutorial || len(got.Topics) != 1 {
		t.Fatalf("unexpected analysis: %+v", got)
	}
	if !strings.Contains(llm.prompt, "how to use goroutines") || !strings.Contains(llm.prompt, "documentary") {
		t.Fatalf("prompt missing content or genre list: %q", llm.prompt)
	}
}

func TestAnalyzeUnknownGenre(t *testing.T) {
	a := NewAnalyzer(logger.Nop(), &fakeLLM{out: map[string]any{"genre": "podcast", "topics": []any{}}})
	got, err := a.Analyze(context.Background(), &content.Content{ID: uuid.New(), RawText: "x"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Genre != content.GenreUnknown {
		t.Fatalf("want unknown, got %s", got.Genre)
	}
}

func TestAnalyzeErrorsAreAnalysisErrors(t *testing.T) {
	cases := map[string]*fakeLLM{
		"provider":      {err: apperr.Provider("openai", errors.New("boom"))},
		"bad relevance": {out: map[string]any{"genre": "news", "topics": []any{map[string]any{"name": "a", "relevance": 3}}}},
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewAnalyzer(logger.Nop(), llm).Analyze(context.Background(), &content.Content{ID: uuid.New(), RawText: "x"})
			if apperr.KindOf(err) != apperr.KindAnalysis {
				t.Fatalf("want analysis error, got %v", err)
			}
		})
	}
	if _, err := NewAnalyzer(logger.Nop(), &fakeLLM{}).Analyze(context.Background(), &content.Content{ID: uuid.New()}); apperr.KindOf(err) != apperr.KindAnalysis {
		t.Fatalf("empty content: want analysis error, got %v", err)
	}
}
