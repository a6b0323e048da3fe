package merger

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/domain/content"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
)

const summarySeparator = "\n\n---\n\n"

// MergedContent is the union of several analyzed contents for one generation run.
// It is never persisted.
type MergedContent struct {
	SourceContentIDs []uuid.UUID
	CombinedSummary  string
	Topics           []content.Topic
	Genre            content.Genre
}

// TopTopics returns up to n topics by descending relevance, first-seen order breaking ties.
func (m *MergedContent) TopTopics(n int) []content.Topic {
	out := append([]content.Topic(nil), m.Topics...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopicNames lists topic names in merged order.
func (m *MergedContent) TopicNames() []string {
	out := make([]string, 0, len(m.Topics))
	for _, t := range m.Topics {
		out = append(out, t.Name)
	}
	return out
}

// Merge combines contents with their analyses. analyzed[i] must describe contents[i].
func Merge(contents []*content.Content, analyzed []*content.AnalyzedContent) (*MergedContent, error) {
	const op = "merge content"
	if len(contents) == 0 {
		return nil, apperr.Validation(op, "no contents to merge")
	}
	if len(contents) != len(analyzed) {
		return nil, apperr.Validation(op, "have %d contents but %d analyses", len(contents), len(analyzed))
	}
	for i := range contents {
		if contents[i] == nil || analyzed[i] == nil {
			return nil, apperr.Validation(op, "nil entry at position %d", i)
		}
		if analyzed[i].ContentID != contents[i].ID {
			return nil, apperr.Validation(op, "analysis at position %d is for content %s, want %s",
				i, analyzed[i].ContentID, contents[i].ID)
		}
	}

	out := &MergedContent{}
	seenIDs := map[uuid.UUID]bool{}
	var summaries []string
	for _, c := range contents {
		if seenIDs[c.ID] {
			continue
		}
		seenIDs[c.ID] = true
		out.SourceContentIDs = append(out.SourceContentIDs, c.ID)
		if text := c.PromptText(); text != "" {
			summaries = append(summaries, text)
		}
	}
	out.CombinedSummary = strings.Join(summaries, summarySeparator)
	out.Topics = mergeTopics(analyzed)
	out.Genre = majorityGenre(analyzed)
	return out, nil
}

func mergeTopics(analyzed []*content.AnalyzedContent) []content.Topic {
	var topics []content.Topic
	index := map[string]int{}
	for _, a := range analyzed {
		for _, t := range a.Topics {
			key := content.NormalizeTopicName(t.Name)
			if key == "" {
				continue
			}
			i, ok := index[key]
			if !ok {
				index[key] = len(topics)
				topics = append(topics, content.Topic{
					Name:        strings.TrimSpace(t.Name),
					Description: strings.TrimSpace(t.Description),
					Relevance:   t.Relevance,
				})
				continue
			}
			if t.Relevance > topics[i].Relevance {
				topics[i].Relevance = t.Relevance
			}
			topics[i].Description = joinDistinct(topics[i].Description, t.Description)
		}
	}
	return topics
}

func joinDistinct(existing, next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return existing
	}
	if existing == "" {
		return next
	}
	for _, part := range strings.Split(existing, " | ") {
		if part == next {
			return existing
		}
	}
	return existing + " | " + next
}

// majorityGenre picks the most frequent genre. Ties go to the first seen,
// except that a known genre beats GenreUnknown.
func majorityGenre(analyzed []*content.AnalyzedContent) content.Genre {
	counts := map[content.Genre]int{}
	var order []content.Genre
	for _, a := range analyzed {
		g := a.Genre
		if g == "" {
			g = content.GenreUnknown
		}
		if counts[g] == 0 {
			order = append(order, g)
		}
		counts[g]++
	}
	best := order[0]
	for _, g := range order[1:] {
		switch {
		case counts[g] > counts[best]:
			best = g
		case counts[g] == counts[best] && best == content.GenreUnknown:
			best = g
		}
	}
	return best
}
