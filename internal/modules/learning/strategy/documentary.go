package strategy

import (
	"fmt"

	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/modules/learning/merger"
)

// Documentary clusters lessons by theme or narrative arc. Completion requires
// recalling the key facts. It is also the fallback for unclassified genres.
type Documentary struct{}

var documentaryLayout = layout{
	kind:     KindDocumentary,
	audience: "documentary",
	guidance: []string{
		"Organize lessons around key themes or narrative arcs.",
		"Center each lesson on one idea, event or period.",
		"Make every lesson add to the understanding of the overall story.",
		"Write comprehension-focused objectives about key facts.",
	},
	durationHint:  "aim for 20-40 minute lessons",
	takeawayFocus: "key facts, themes and narratives worth remembering",
}

const documentaryRecallScore = 70

func (Documentary) Kind() Kind { return KindDocumentary }

func (Documentary) LessonStructurePrompt(m *merger.MergedContent) PromptSpec {
	return documentaryLayout.lessonPrompt(m)
}

func (Documentary) TakeawaysPrompt(m *merger.MergedContent, plans []LessonPlan) PromptSpec {
	return documentaryLayout.takeawayPrompt(m, plans)
}

func (Documentary) CompletionCriteria(totalLessons, _ int) course.CompletionCriteria {
	score := documentaryRecallScore
	return course.CompletionCriteria{
		Type:         course.CriteriaScoreThreshold,
		MinimumScore: &score,
		CustomRules: []string{
			fmt.Sprintf("Complete all %d lessons and recall the key facts, themes and narratives.", totalLessons),
		},
		GenreRequirements: map[string]any{
			"key_fact_recall":         true,
			"narrative_understanding": true,
		},
	}
}

func (Documentary) LessonCompletionCriteria(plan LessonPlan) course.CompletionCriteria {
	return timedLessonCriteria(plan, 0.8,
		"Review every section and recall the key facts of: %s",
		map[string]any{"comprehension_check": true})
}

func (Documentary) Difficulty(_ *merger.MergedContent, plans []LessonPlan) course.DifficultyLevel {
	return scaleDifficulty(course.DifficultyBeginner, plans)
}
