package content

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Genre string

const (
	GenreTutorial      Genre = "tutorial"
	GenreCommentary    Genre = "commentary"
	GenreReview        Genre = "review"
	GenreNews          Genre = "news"
	GenreAnalysis      Genre = "analysis"
	GenreInterview     Genre = "interview"
	GenreOpinion       Genre = "opinion"
	GenreEntertainment Genre = "entertainment"
	GenreEducational   Genre = "educational"
	GenreStorytime     Genre = "storytime"
	GenreDemonstration Genre = "demonstration"
	GenreDocumentary   Genre = "documentary"
	GenreUnknown       Genre = "unknown"
)

// Genres lists every classified genre in declaration order.
var Genres = []Genre{
	GenreTutorial, GenreCommentary, GenreReview, GenreNews, GenreAnalysis, GenreInterview, GenreOpinion,
	GenreEntertainment, GenreEducational, GenreStorytime, GenreDemonstration, GenreDocumentary, GenreUnknown,
}

// GenreNames is Genres as strings, for JSON schema enums.
func GenreNames() []string {
	out := make([]string, 0, len(Genres))
	for _, g := range Genres {
		out = append(out, string(g))
	}
	return out
}

// ParseGenre normalizes s; anything outside the enum becomes GenreUnknown.
func ParseGenre(s string) Genre {
	g := Genre(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Genres {
		if g == known {
			return g
		}
	}
	return GenreUnknown
}

type Topic struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description,omitempty"`
	Relevance   float64 `json:"relevance" validate:"gte=0,lte=1"`
}

// NormalizeTopicName is the dedup key for topics: lower case, single-spaced.
func NormalizeTopicName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// AnalyzedContent is the genre and topic classification of one Content.
// It is computed once per content and cached by content id.
type AnalyzedContent struct {
	ContentID uuid.UUID `gorm:"type:uuid;primaryKey;column:content_id" json:"content_id"`
	Genre     Genre     `gorm:"column:genre;not null;index" json:"genre"`
	Topics    []Topic   `gorm:"column:topics;serializer:json;type:jsonb" json:"topics"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (AnalyzedContent) TableName() string { return "analyzed_content" }
