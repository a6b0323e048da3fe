package strategy

import (
	"fmt"

	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/modules/learning/merger"
)

// Analysis orders lessons argument, evidence, perspective, synthesis.
// Completion requires producing an evaluative artifact.
type Analysis struct{}

var analysisLayout = layout{
	kind:     KindAnalysis,
	audience: "analytical",
	guidance: []string{
		"Start by establishing the topic and the main arguments.",
		"Examine the evidence and reasoning behind them.",
		"Explore counterarguments and alternative perspectives.",
		"End with synthesis and evaluation.",
	},
	durationHint:  "aim for 20-40 minute lessons",
	takeawayFocus: "critical-thinking skills: evaluating arguments, weighing evidence and forming a reasoned position",
}

func (Analysis) Kind() Kind { return KindAnalysis }

func (Analysis) LessonStructurePrompt(m *merger.MergedContent) PromptSpec {
	return analysisLayout.lessonPrompt(m)
}

func (Analysis) TakeawaysPrompt(m *merger.MergedContent, plans []LessonPlan) PromptSpec {
	return analysisLayout.takeawayPrompt(m, plans)
}

func (Analysis) CompletionCriteria(totalLessons, _ int) course.CompletionCriteria {
	return course.CompletionCriteria{
		Type: course.CriteriaCustom,
		CustomRules: []string{
			fmt.Sprintf("Complete all %d lessons.", totalLessons),
			"Write an evaluation of the central argument that weighs its evidence.",
		},
		GenreRequirements: map[string]any{
			"evaluative_artifact": true,
			"argument_evaluation": true,
		},
	}
}

func (Analysis) LessonCompletionCriteria(plan LessonPlan) course.CompletionCriteria {
	return timedLessonCriteria(plan, 0.9,
		"Review every section and critically analyze: %s",
		map[string]any{"critical_engagement": true})
}

func (Analysis) Difficulty(_ *merger.MergedContent, plans []LessonPlan) course.DifficultyLevel {
	return scaleDifficulty(course.DifficultyAdvanced, plans)
}
