package strategy

import (
	"fmt"

	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/modules/learning/merger"
)

// News orders lessons background, then analysis, then implications.
// Completion requires acknowledging more than one perspective.
type News struct{}

var newsLayout = layout{
	kind:     KindNews,
	audience: "news",
	guidance: []string{
		"Start with background context and what happened.",
		"Continue with analysis of why it matters.",
		"Finish with perspectives and implications.",
		"Give each lesson one specific angle.",
	},
	durationHint:  "aim for 15-30 minute lessons",
	takeawayFocus: "the events, their context, competing perspectives and likely implications",
}

const newsMinPerspectives = 2

func (News) Kind() Kind { return KindNews }

func (News) LessonStructurePrompt(m *merger.MergedContent) PromptSpec {
	return newsLayout.lessonPrompt(m)
}

func (News) TakeawaysPrompt(m *merger.MergedContent, plans []LessonPlan) PromptSpec {
	return newsLayout.takeawayPrompt(m, plans)
}

func (News) CompletionCriteria(totalLessons, _ int) course.CompletionCriteria {
	return course.CompletionCriteria{
		Type: course.CriteriaCustom,
		CustomRules: []string{
			fmt.Sprintf("Complete all %d lessons.", totalLessons),
			fmt.Sprintf("Acknowledge at least %d perspectives on the events.", newsMinPerspectives),
		},
		GenreRequirements: map[string]any{
			"multi_perspective":     true,
			"min_perspectives":      newsMinPerspectives,
			"context_understanding": true,
		},
	}
}

func (News) LessonCompletionCriteria(plan LessonPlan) course.CompletionCriteria {
	return timedLessonCriteria(plan, 0.75,
		"Review every section and understand the context of: %s",
		map[string]any{"context_check": true})
}

func (News) Difficulty(_ *merger.MergedContent, plans []LessonPlan) course.DifficultyLevel {
	return scaleDifficulty(course.DifficultyIntermediate, plans)
}
