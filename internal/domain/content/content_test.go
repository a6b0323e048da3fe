package content

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
)

func TestSummaryText(t *testing.T) {
	s := Summary{
		Abstract:     Section{Text: "abs"},
		Introduction: Section{Text: "  "},
		Chapters:     []Section{{Heading: "Setup", Text: "install"}},
		Conclusion:   Section{Text: "done"},
	}
	want := "# Abstract\nabs\n\n# Chapter 1: Setup\ninstall\n\n# Conclusion\ndone"
	if got := s.Text(); got != want {
		t.Fatalf("Text: want=%q got=%q", want, got)
	}
}

func TestParseGenre(t *testing.T) {
	if got := ParseGenre(" Tutorial "); got != GenreTutorial {
		t.Fatalf("ParseGenre: want=%s got=%s", GenreTutorial, got)
	}
	if got := ParseGenre("poetry"); got != GenreUnknown {
		t.Fatalf("ParseGenre out of enum: want=%s got=%s", GenreUnknown, got)
	}
}

func TestNormalizeTopicName(t *testing.T) {
	if got := NormalizeTopicName("  Go   Channels\t"); got != "go channels" {
		t.Fatalf("NormalizeTopicName: got=%q", got)
	}
}

func TestTitleFallbacks(t *testing.T) {
	c := &Content{Source: Source{Link: "https://example.com/a"}}
	if got := c.Title(); got != "https://example.com/a" {
		t.Fatalf("Title link fallback: got=%q", got)
	}
	c.Source.Origin = "Example"
	if got := c.Title(); got != "Example" {
		t.Fatalf("Title origin: got=%q", got)
	}
	c.Summary.Abstract.Heading = "Intro to Go"
	if got := c.Title(); got != "Intro to Go" {
		t.Fatalf("Title heading: got=%q", got)
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"source":{"link":"https://x","format":"web"},"raw_text":"hello"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := FileLoader{}.Load(context.Background(), good)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Source.Link != "https://x" || c.RawText != "hello" {
		t.Fatalf("Load: unexpected content %+v", c)
	}

	_, err = FileLoader{}.Load(context.Background(), filepath.Join(dir, "missing.json"))
	if apperr.KindOf(err) != apperr.KindLoad {
		t.Fatalf("missing file: want load error got=%v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"source":{"format":"floppy"},"raw_text":"x"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = FileLoader{}.Load(context.Background(), bad)
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("bad format: got=%v", err)
	}
}
