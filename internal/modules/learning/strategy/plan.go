package strategy

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/recollection-backend/internal/domain/course"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SectionDraft is a content section proposed by the LLM. SourceIndex points
// into the course's source list; negative means no specific source.
type SectionDraft struct {
	Title       string `json:"title" validate:"required"`
	Body        string `json:"body" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=text video_reference code_example diagram quote key_point"`
	SourceIndex int    `json:"source_index"`
}

// LessonPlan is one lesson as returned by the lesson structuring call.
type LessonPlan struct {
	Title                    string         `json:"title" validate:"required"`
	Description              string         `json:"description" validate:"required"`
	Objectives               []string       `json:"objectives" validate:"min=1,dive,required"`
	Prerequisites            []string       `json:"prerequisites" validate:"dive,required"`
	ContentSections          []SectionDraft `json:"content_sections" validate:"dive"`
	EstimatedDurationSeconds int            `json:"estimated_duration_seconds" validate:"gte=0"`
}

type lessonPlanEnvelope struct {
	Lessons []LessonPlan `json:"lessons" validate:"dive"`
}

type takeawayEnvelope struct {
	Takeaways []course.Takeaway `json:"takeaways" validate:"dive"`
}

// DecodeLessonPlans converts a structured LLM result into validated plans.
// An empty list is an error.
func DecodeLessonPlans(obj map[string]any) ([]LessonPlan, error) {
	var env lessonPlanEnvelope
	if err := decode(obj, &env); err != nil {
		return nil, err
	}
	if len(env.Lessons) == 0 {
		return nil, fmt.Errorf("response contained zero lessons")
	}
	if err := validate.Struct(env); err != nil {
		return nil, fmt.Errorf("lesson plan invalid: %w", err)
	}
	return env.Lessons, nil
}

// DecodeTakeaways converts a structured LLM result into validated takeaways.
func DecodeTakeaways(obj map[string]any) ([]course.Takeaway, error) {
	var env takeawayEnvelope
	if err := decode(obj, &env); err != nil {
		return nil, err
	}
	if err := validate.Struct(env); err != nil {
		return nil, fmt.Errorf("takeaway invalid: %w", err)
	}
	return env.Takeaways, nil
}

func decode(obj map[string]any, out any) error {
	if obj == nil {
		return fmt.Errorf("empty response")
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("re-encode response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// LessonPlanSchema is the strict JSON schema for the lesson structuring call.
func LessonPlanSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}
	section := object(map[string]any{
		"title":        str,
		"body":         str,
		"type":         map[string]any{"type": "string", "enum": course.SectionTypes},
		"source_index": map[string]any{"type": "integer"},
	})
	lesson := object(map[string]any{
		"title":                      str,
		"description":                str,
		"objectives":                 strList,
		"prerequisites":              strList,
		"content_sections":           map[string]any{"type": "array", "items": section},
		"estimated_duration_seconds": map[string]any{"type": "integer", "minimum": 0},
	})
	return object(map[string]any{
		"lessons": map[string]any{"type": "array", "items": lesson},
	})
}

// TakeawaySchema is the strict JSON schema for the takeaway extraction call.
func TakeawaySchema() map[string]any {
	str := map[string]any{"type": "string"}
	takeaway := object(map[string]any{
		"name":        str,
		"description": str,
		"criteria":    map[string]any{"type": "array", "items": str},
	})
	return object(map[string]any{
		"takeaways": map[string]any{"type": "array", "items": takeaway},
	})
}

// object builds a strict-mode object schema: every property required, nothing extra.
func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
