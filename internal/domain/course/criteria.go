package course

type CriteriaType string

const (
	CriteriaAllActivities  CriteriaType = "all_activities"
	CriteriaScoreThreshold CriteriaType = "score_threshold"
	CriteriaTimeBased      CriteriaType = "time_based"
	CriteriaCustom         CriteriaType = "custom"
)

type CompletionCriteria struct {
	Type               CriteriaType   `json:"type"`
	MinimumScore       *int           `json:"minimum_score,omitempty"`
	MinimumTimeSeconds *int           `json:"minimum_time_seconds,omitempty"`
	CustomRules        []string       `json:"custom_rules,omitempty"`
	GenreRequirements  map[string]any `json:"genre_requirements,omitempty"`
}

// AutoCompleteAfter is the accumulated time, in seconds, after which a lesson
// counts as completed without an explicit mark. ok is false when time alone never completes it.
func (c CompletionCriteria) AutoCompleteAfter() (seconds int, ok bool) {
	if c.Type != CriteriaTimeBased || c.MinimumTimeSeconds == nil {
		return 0, false
	}
	return *c.MinimumTimeSeconds, true
}

// Satisfied evaluates the criteria against observed activity.
// all_activities and custom cannot be decided from time and score alone and report false.
func (c CompletionCriteria) Satisfied(timeSpentSeconds int, score *int) bool {
	switch c.Type {
	case CriteriaTimeBased:
		limit, ok := c.AutoCompleteAfter()
		return ok && timeSpentSeconds >= limit
	case CriteriaScoreThreshold:
		if c.MinimumScore == nil {
			return false
		}
		return score != nil && *score >= *c.MinimumScore
	default:
		return false
	}
}
