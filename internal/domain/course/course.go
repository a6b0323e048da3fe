package course

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/recollection-backend/internal/domain/content"
)

type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
	DifficultyExpert       DifficultyLevel = "expert"
)

var difficultyLadder = []DifficultyLevel{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert}

// Raise moves n steps up the ladder, stopping at expert.
func (d DifficultyLevel) Raise(n int) DifficultyLevel {
	idx := 0
	for i, lvl := range difficultyLadder {
		if lvl == d {
			idx = i
			break
		}
	}
	idx += n
	if idx >= len(difficultyLadder) {
		idx = len(difficultyLadder) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return difficultyLadder[idx]
}

type SectionType string

const (
	SectionText           SectionType = "text"
	SectionVideoReference SectionType = "video_reference"
	SectionCodeExample    SectionType = "code_example"
	SectionDiagram        SectionType = "diagram"
	SectionQuote          SectionType = "quote"
	SectionKeyPoint       SectionType = "key_point"
)

// SectionTypes lists valid section types for schema enums.
var SectionTypes = []string{
	string(SectionText), string(SectionVideoReference), string(SectionCodeExample),
	string(SectionDiagram), string(SectionQuote), string(SectionKeyPoint),
}

type ContentReference struct {
	ContentID uuid.UUID `json:"content_id"`
	Link      string    `json:"link"`
	Relevance string    `json:"relevance"`
}

type Takeaway struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Criteria    []string `json:"criteria"`
}

type ContentSection struct {
	ID              uuid.UUID         `json:"id"`
	Title           string            `json:"title"`
	Body            string            `json:"body"`
	Order           int               `json:"order"`
	Type            SectionType       `json:"type"`
	SourceReference *ContentReference `json:"source_reference,omitempty"`
}

type Lesson struct {
	ID                       uuid.UUID          `json:"id"`
	Title                    string             `json:"title"`
	Description              string             `json:"description"`
	Order                    int                `json:"order"`
	Objectives               []string           `json:"objectives"`
	Prerequisites            []string           `json:"prerequisites"`
	ContentSections          []ContentSection   `json:"content_sections"`
	CompletionCriteria       CompletionCriteria `json:"completion_criteria"`
	EstimatedDurationSeconds int                `json:"estimated_duration_seconds"`
}

// Course is assembled once by the generator and not edited afterwards.
type Course struct {
	ID                       uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID                  uuid.UUID          `gorm:"type:uuid;index" json:"owner_id"`
	TaskID                   *uuid.UUID         `gorm:"type:uuid;index" json:"task_id,omitempty"`
	Title                    string             `gorm:"not null" json:"title"`
	Description              string             `gorm:"type:text" json:"description"`
	Objective                string             `gorm:"type:text" json:"objective"`
	SourceContent            []ContentReference `gorm:"serializer:json;type:jsonb" json:"source_content"`
	Genre                    content.Genre      `gorm:"index" json:"genre"`
	Topics                   []content.Topic    `gorm:"serializer:json;type:jsonb" json:"topics"`
	DifficultyLevel          DifficultyLevel    `json:"difficulty_level"`
	Lessons                  []Lesson           `gorm:"serializer:json;type:jsonb" json:"lessons"`
	Takeaways                []Takeaway         `gorm:"serializer:json;type:jsonb" json:"takeaways"`
	CompletionCriteria       CompletionCriteria `gorm:"serializer:json;type:jsonb" json:"completion_criteria"`
	EstimatedDurationSeconds int                `gorm:"not null;default:0" json:"estimated_duration_seconds"`
	CreatedAt                time.Time          `gorm:"not null;index" json:"created_at"`
	UpdatedAt                time.Time          `gorm:"not null" json:"updated_at"`
}

func (Course) TableName() string { return "course" }

func (c *Course) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Lesson returns the lesson with the given order, or nil.
func (c *Course) Lesson(order int) *Lesson {
	if c == nil {
		return nil
	}
	for i := range c.Lessons {
		if c.Lessons[i].Order == order {
			return &c.Lessons[i]
		}
	}
	return nil
}

// Validate checks the structural invariants of an assembled course.
func (c *Course) Validate() error {
	if c == nil {
		return fmt.Errorf("nil course")
	}
	if len(c.Lessons) == 0 {
		return fmt.Errorf("course has no lessons")
	}
	if len(c.SourceContent) == 0 {
		return fmt.Errorf("course has no source content")
	}
	seen := make([]bool, len(c.Lessons))
	total := 0
	for _, l := range c.Lessons {
		if l.Order < 0 || l.Order >= len(c.Lessons) || seen[l.Order] {
			return fmt.Errorf("lesson orders are not a permutation of 0..%d", len(c.Lessons)-1)
		}
		seen[l.Order] = true
		if l.EstimatedDurationSeconds < 0 {
			return fmt.Errorf("lesson %d has negative duration", l.Order)
		}
		total += l.EstimatedDurationSeconds
	}
	if total != c.EstimatedDurationSeconds {
		return fmt.Errorf("estimated duration %d does not match lesson sum %d", c.EstimatedDurationSeconds, total)
	}
	return nil
}
