package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/recollection-backend/internal/domain/content"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// LLM is the structured-output call the analyzer depends on.
type LLM interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

// Analyzer classifies one content item into a genre and topic list.
type Analyzer interface {
	Analyze(ctx context.Context, c *content.Content) (*content.AnalyzedContent, error)
}

const (
	maxPromptChars = 16000
	maxTopics      = 12

	system = "You classify source material for course generation. Respond only with JSON that matches the provided schema."
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type analyzer struct {
	log *logger.Logger
	llm LLM
	now func() time.Time
}

func NewAnalyzer(log *logger.Logger, llm LLM) Analyzer {
	return &analyzer{log: log.With("service", "ContentAnalyzer"), llm: llm, now: time.Now}
}

type result struct {
	Genre  string          `json:"genre"`
	Topics []content.Topic `json:"topics" validate:"dive"`
}

// Analyze never persists; callers cache the result by content id.
func (a *analyzer) Analyze(ctx context.Context, c *content.Content) (*content.AnalyzedContent, error) {
	if c == nil {
		return nil, apperr.Validation("analyze content", "content is nil")
	}
	op := fmt.Sprintf("analyze content %s", c.ID)
	text := c.PromptText()
	if text == "" {
		return nil, apperr.Analysis(op, fmt.Errorf("content has no text"))
	}

	obj, err := a.llm.GenerateJSON(ctx, system, prompt(text), "content_analysis", Schema())
	if err != nil {
		return nil, apperr.Analysis(op, err)
	}
	var r result
	raw, err := json.Marshal(obj)
	if err == nil {
		err = json.Unmarshal(raw, &r)
	}
	if err == nil {
		err = validate.Struct(r)
	}
	if err != nil {
		return nil, apperr.Analysis(op, apperr.SchemaViolation("decode analysis", err))
	}

	genre := content.ParseGenre(r.Genre)
	if genre == content.GenreUnknown && strings.TrimSpace(r.Genre) != "" && r.Genre != string(content.GenreUnknown) {
		a.log.Warn("Model returned genre outside the enum", "content_id", c.ID, "genre", r.Genre)
	}
	topics := r.Topics
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return &content.AnalyzedContent{
		ContentID: c.ID,
		Genre:     genre,
		Topics:    topics,
		CreatedAt: a.now(),
	}, nil
}

func prompt(text string) string {
	if r := []rune(text); len(r) > maxPromptChars {
		text = string(r[:maxPromptChars])
	}
	var b strings.Builder
	b.WriteString("Classify the genre of the following content and extract its key topics.\n\n")
	fmt.Fprintf(&b, "Genre must be one of: %s. If you are not sure, use \"unknown\".\n\n", strings.Join(content.GenreNames(), ", "))
	b.WriteString("For each topic give a concise name (1-3 words), a 1-2 sentence description, " +
		"and a relevance between 0 and 1 for how central it is to the content.\n\n")
	b.WriteString("Content:\n")
	b.WriteString(text)
	return b.String()
}

// Schema is the strict JSON schema of an analysis response.
func Schema() map[string]any {
	topic := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"relevance":   map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
		"required":             []string{"description", "name", "relevance"},
		"additionalProperties": false,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"genre":  map[string]any{"type": "string", "enum": content.GenreNames()},
			"topics": map[string]any{"type": "array", "items": topic},
		},
		"required":             []string{"genre", "topics"},
		"additionalProperties": false,
	}
}
