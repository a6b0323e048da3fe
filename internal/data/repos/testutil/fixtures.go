package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/recollection-backend/internal/domain/content"
	"github.com/yungbote/recollection-backend/internal/domain/course"
)

func SeedContent(tb testing.TB, db *gorm.DB, ownerID uuid.UUID, text string) *content.Content {
	tb.Helper()
	c := &content.Content{
		OwnerID:   ownerID,
		Source:    content.Source{Link: "https://example.com/" + uuid.NewString(), Format: content.FormatWeb},
		RawText:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("seed content: %v", err)
	}
	return c
}

// SeedCourse stores a course with one lesson per duration.
func SeedCourse(tb testing.TB, db *gorm.DB, ownerID uuid.UUID, durations ...int) *course.Course {
	tb.Helper()
	now := time.Now().UTC()
	c := &course.Course{
		OwnerID:       ownerID,
		Title:         "Course: fixture",
		SourceContent: []course.ContentReference{{ContentID: uuid.New(), Relevance: "Primary source"}},
		Genre:         content.GenreTutorial,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, d := range durations {
		limit := d
		c.Lessons = append(c.Lessons, course.Lesson{
			ID:    uuid.New(),
			Title: "Lesson " + string(rune('A'+i)),
			Order: i,
			CompletionCriteria: course.CompletionCriteria{
				Type:               course.CriteriaTimeBased,
				MinimumTimeSeconds: &limit,
			},
			EstimatedDurationSeconds: d,
		})
		c.EstimatedDurationSeconds += d
	}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}
