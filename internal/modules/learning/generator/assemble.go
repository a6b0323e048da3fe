package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/domain/content"
	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/modules/learning/merger"
	"github.com/yungbote/recollection-backend/internal/modules/learning/strategy"
)

const descriptionTopics = 5

func assemble(
	contents []*content.Content,
	merged *merger.MergedContent,
	strat strategy.Strategy,
	plans []strategy.LessonPlan,
	takeaways []course.Takeaway,
	now time.Time,
) *course.Course {
	sources := references(contents)

	lessons := make([]course.Lesson, 0, len(plans))
	total := 0
	for i, p := range plans {
		lessons = append(lessons, course.Lesson{
			ID:                       uuid.New(),
			Title:                    p.Title,
			Description:              p.Description,
			Order:                    i,
			Objectives:               nonNil(p.Objectives),
			Prerequisites:            nonNil(p.Prerequisites),
			ContentSections:          sections(p, sources),
			CompletionCriteria:       strat.LessonCompletionCriteria(p),
			EstimatedDurationSeconds: p.EstimatedDurationSeconds,
		})
		total += p.EstimatedDurationSeconds
	}

	topicList := strings.Join(topicNames(merged.TopTopics(descriptionTopics)), ", ")
	return &course.Course{
		ID:    uuid.New(),
		Title: title(contents),
		Description: fmt.Sprintf("A comprehensive course covering %s based on %d content source(s).",
			topicList, len(sources)),
		Objective:                fmt.Sprintf("Master the concepts and skills related to %s", topicList),
		SourceContent:            sources,
		Genre:                    merged.Genre,
		Topics:                   merged.Topics,
		DifficultyLevel:          strat.Difficulty(merged, plans),
		Lessons:                  lessons,
		Takeaways:                takeaways,
		CompletionCriteria:       strat.CompletionCriteria(len(lessons), total),
		EstimatedDurationSeconds: total,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

func references(contents []*content.Content) []course.ContentReference {
	out := make([]course.ContentReference, 0, len(contents))
	seen := make(map[uuid.UUID]bool, len(contents))
	for _, c := range contents {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, course.ContentReference{ContentID: c.ID, Link: c.Source.Link})
	}
	for i := range out {
		if len(out) == 1 {
			out[i].Relevance = "Primary source"
		} else {
			out[i].Relevance = fmt.Sprintf("Source %d", i+1)
		}
	}
	return out
}

func title(contents []*content.Content) string {
	base := contents[0].Title()
	if base == "" {
		base = "Untitled Content"
	}
	if len(contents) == 1 {
		return "Course: " + base
	}
	return fmt.Sprintf("Course: %s and %d more", base, len(contents)-1)
}

// sections turns drafts into ordered sections and appends the objectives as a key point.
func sections(p strategy.LessonPlan, sources []course.ContentReference) []course.ContentSection {
	out := make([]course.ContentSection, 0, len(p.ContentSections)+1)
	for _, d := range p.ContentSections {
		s := course.ContentSection{
			ID:    uuid.New(),
			Title: d.Title,
			Body:  d.Body,
			Order: len(out),
			Type:  course.SectionType(d.Type),
		}
		if d.SourceIndex >= 0 && d.SourceIndex < len(sources) {
			ref := sources[d.SourceIndex]
			s.SourceReference = &ref
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		s := course.ContentSection{
			ID:    uuid.New(),
			Title: p.Title + " - Content",
			Body:  p.Description,
			Type:  course.SectionText,
		}
		if len(sources) > 0 {
			ref := sources[0]
			s.SourceReference = &ref
		}
		out = append(out, s)
	}

	bullets := make([]string, 0, len(p.Objectives))
	for _, o := range p.Objectives {
		bullets = append(bullets, "- "+o)
	}
	out = append(out, course.ContentSection{
		ID:    uuid.New(),
		Title: "Learning Objectives",
		Body:  strings.Join(bullets, "\n"),
		Order: len(out),
		Type:  course.SectionKeyPoint,
	})
	return out
}

func topicNames(ts []content.Topic) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Name)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
