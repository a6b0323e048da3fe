package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Format string

const (
	FormatPDF     Format = "pdf"
	FormatWeb     Format = "web"
	FormatYouTube Format = "youtube"
	FormatText    Format = "text"
)

func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatWeb, FormatYouTube, FormatText:
		return true
	}
	return false
}

type Source struct {
	Link   string `json:"link"`
	Author string `json:"author,omitempty"`
	Origin string `json:"origin,omitempty"`
	Format Format `json:"format"`
}

type Section struct {
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text"`
}

type Summary struct {
	Abstract     Section   `json:"abstract"`
	Introduction Section   `json:"introduction"`
	Chapters     []Section `json:"chapters"`
	Conclusion   Section   `json:"conclusion"`
}

// Text renders the summary as markdown-style sections.
func (s Summary) Text() string {
	var b strings.Builder
	write := func(title, body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("# ")
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(body)
	}
	write("Abstract", s.Abstract.Text)
	write("Introduction", s.Introduction.Text)
	for i, ch := range s.Chapters {
		write(fmt.Sprintf("Chapter %d: %s", i+1, strings.TrimSpace(ch.Heading)), ch.Text)
	}
	write("Conclusion", s.Conclusion.Text)
	return b.String()
}

// Content is one loaded source. Rows are written once by the loading step and never updated.
type Content struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;index" json:"owner_id"`
	Source    Source    `gorm:"embedded;embeddedPrefix:source_" json:"source"`
	RawText   string    `gorm:"column:raw_text;type:text" json:"raw_text"`
	Summary   Summary   `gorm:"column:summary;serializer:json;type:jsonb" json:"summary"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (Content) TableName() string { return "content" }

func (c *Content) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Title is the display title: the abstract heading, else the source origin, else the link.
func (c *Content) Title() string {
	if c == nil {
		return ""
	}
	for _, s := range []string{c.Summary.Abstract.Heading, c.Source.Origin, c.Source.Link} {
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
	}
	return c.ID.String()
}

// PromptText is the text handed to the LLM: the rendered summary, else the raw text.
func (c *Content) PromptText() string {
	if c == nil {
		return ""
	}
	if s := c.Summary.Text(); s != "" {
		return s
	}
	return strings.TrimSpace(c.RawText)
}
