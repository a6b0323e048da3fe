package strategy

import (
	"github.com/yungbote/recollection-backend/internal/domain/content"
	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/modules/learning/merger"
)

// PromptSpec is one structured LLM request.
type PromptSpec struct {
	Name   string
	System string
	User   string
	Schema map[string]any
}

// Strategy is the genre-specific policy for lesson ordering, prompts and completion rules.
type Strategy interface {
	Kind() Kind
	LessonStructurePrompt(m *merger.MergedContent) PromptSpec
	TakeawaysPrompt(m *merger.MergedContent, plans []LessonPlan) PromptSpec
	CompletionCriteria(totalLessons, totalDurationSeconds int) course.CompletionCriteria
	LessonCompletionCriteria(plan LessonPlan) course.CompletionCriteria
	Difficulty(m *merger.MergedContent, plans []LessonPlan) course.DifficultyLevel
}

type Kind string

const (
	KindTutorial    Kind = "tutorial"
	KindDocumentary Kind = "documentary"
	KindNews        Kind = "news"
	KindAnalysis    Kind = "analysis"
)

// DefaultKind is used for every genre without a dedicated strategy.
const DefaultKind = KindDocumentary

var (
	tutorial    Strategy = Tutorial{}
	documentary Strategy = Documentary{}
	news        Strategy = News{}
	analysis    Strategy = Analysis{}
)

// Select maps a genre to its strategy. It never fails: genres without a
// dedicated strategy, and values outside the enum, get the Documentary strategy.
func Select(g content.Genre) Strategy {
	switch content.ParseGenre(string(g)) {
	case content.GenreTutorial, content.GenreDemonstration, content.GenreEducational:
		return tutorial
	case content.GenreNews, content.GenreCommentary:
		return news
	case content.GenreAnalysis, content.GenreOpinion, content.GenreReview:
		return analysis
	default:
		return documentary
	}
}
