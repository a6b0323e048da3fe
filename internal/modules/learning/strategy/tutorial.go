package strategy

import (
	"fmt"

	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/modules/learning/merger"
)

// Tutorial orders lessons step by step with building complexity. A course is
// complete once every step has been demonstrated.
type Tutorial struct{}

var tutorialLayout = layout{
	kind:     KindTutorial,
	audience: "tutorial",
	guidance: []string{
		"Start with foundational concepts and setup.",
		"Build complexity progressively; each lesson prepares the next.",
		"Focus each lesson on one concrete skill.",
		"State dependencies between lessons explicitly as prerequisites.",
		"Write hands-on, action-oriented objectives.",
	},
	durationHint:  "aim for 15-30 minute lessons",
	takeawayFocus: "practical skills the learner can apply without guidance",
}

func (Tutorial) Kind() Kind { return KindTutorial }

func (Tutorial) LessonStructurePrompt(m *merger.MergedContent) PromptSpec {
	return tutorialLayout.lessonPrompt(m)
}

func (Tutorial) TakeawaysPrompt(m *merger.MergedContent, plans []LessonPlan) PromptSpec {
	return tutorialLayout.takeawayPrompt(m, plans)
}

func (Tutorial) CompletionCriteria(totalLessons, totalDurationSeconds int) course.CompletionCriteria {
	return course.CompletionCriteria{
		Type: course.CriteriaAllActivities,
		CustomRules: []string{
			fmt.Sprintf("Complete all %d lessons and demonstrate every step through practice.", totalLessons),
		},
		GenreRequirements: map[string]any{
			"requires_practice":    true,
			"steps_to_demonstrate": totalLessons,
			"skill_demonstration":  true,
			"estimated_seconds":    totalDurationSeconds,
		},
	}
}

func (Tutorial) LessonCompletionCriteria(plan LessonPlan) course.CompletionCriteria {
	return timedLessonCriteria(plan, 1.0,
		"Work through every section and practice the steps of: %s",
		map[string]any{"requires_practice": true})
}

func (Tutorial) Difficulty(_ *merger.MergedContent, plans []LessonPlan) course.DifficultyLevel {
	return scaleDifficulty(course.DifficultyBeginner, plans)
}
