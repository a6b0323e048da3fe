package strategy

import (
	"fmt"
	"math"
	"strings"

	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/modules/learning/merger"
)

const (
	lessonSummaryLimit   = 12000
	takeawaySummaryLimit = 500

	systemPrompt = "You are an instructional designer who turns source material into structured, self-paced courses. " +
		"Respond only with JSON that matches the provided schema."
)

// layout is the genre-specific wording shared by the prompt builders.
type layout struct {
	kind          Kind
	audience      string
	guidance      []string
	durationHint  string
	takeawayFocus string
}

func (l layout) lessonPrompt(m *merger.MergedContent) PromptSpec {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following %s content and design the lesson structure of a course.\n\n", l.audience)
	fmt.Fprintf(&b, "Content summary:\n%s\n\n", truncate(m.CombinedSummary, lessonSummaryLimit))
	fmt.Fprintf(&b, "Topics covered: %s\n\n", strings.Join(m.TopicNames(), ", "))
	b.WriteString("Follow these ordering rules:\n")
	for i, g := range l.guidance {
		fmt.Fprintf(&b, "%d. %s\n", i+1, g)
	}
	fmt.Fprintf(&b, "%d. Balance lesson length (%s).\n\n", len(l.guidance)+1, l.durationHint)
	b.WriteString("For every lesson return: title, description, objectives (what the learner can do afterwards), " +
		"prerequisites (titles of earlier lessons, empty for the first), content_sections (title, body, type, " +
		"source_index: 0-based index of the source it draws on or -1), and estimated_duration_seconds.\n")
	if n := len(m.SourceContentIDs); n > 1 {
		fmt.Fprintf(&b, "The content merges %d sources; valid source_index values are 0..%d.\n", n, n-1)
	}
	return PromptSpec{
		Name:   string(l.kind) + "_lesson_structure",
		System: systemPrompt,
		User:   b.String(),
		Schema: LessonPlanSchema(),
	}
}

func (l layout) takeawayPrompt(m *merger.MergedContent, plans []LessonPlan) PromptSpec {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on this %s course, identify 3-5 key takeaways.\n\n", l.audience)
	fmt.Fprintf(&b, "Content: %s\n\n", truncate(m.CombinedSummary, takeawaySummaryLimit))
	fmt.Fprintf(&b, "Topics: %s\n\nLessons:\n", strings.Join(m.TopicNames(), ", "))
	for _, p := range plans {
		fmt.Fprintf(&b, "- %s\n", p.Title)
	}
	fmt.Fprintf(&b, "\nFocus on %s. For each takeaway give a short name, a description, and criteria "+
		"that show the takeaway was learned.\n", l.takeawayFocus)
	return PromptSpec{
		Name:   string(l.kind) + "_takeaways",
		System: systemPrompt,
		User:   b.String(),
		Schema: TakeawaySchema(),
	}
}

// timedLessonCriteria completes a lesson once ratio of its estimated duration has been spent on it.
// Lessons without an estimate fall back to custom criteria that only a manual mark satisfies.
func timedLessonCriteria(plan LessonPlan, ratio float64, rule string, req map[string]any) course.CompletionCriteria {
	c := course.CompletionCriteria{
		Type:              course.CriteriaCustom,
		CustomRules:       []string{fmt.Sprintf(rule, plan.Title)},
		GenreRequirements: req,
	}
	if plan.EstimatedDurationSeconds > 0 {
		limit := int(math.Ceil(float64(plan.EstimatedDurationSeconds) * ratio))
		c.Type = course.CriteriaTimeBased
		c.MinimumTimeSeconds = &limit
	}
	return c
}

// scaleDifficulty raises base one step per signal: many lessons, long lessons, deep prerequisites.
func scaleDifficulty(base course.DifficultyLevel, plans []LessonPlan) course.DifficultyLevel {
	if len(plans) == 0 {
		return base
	}
	steps := 0
	if len(plans) >= 6 {
		steps++
	}
	total, deep := 0, false
	for _, p := range plans {
		total += p.EstimatedDurationSeconds
		if len(p.Prerequisites) >= 3 {
			deep = true
		}
	}
	if total/len(plans) > 40*60 {
		steps++
	}
	if deep {
		steps++
	}
	return base.Raise(steps)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
