package progress

import (
	"testing"
	"time"
)

func TestRecomputeFloorsPercentAndCompletesOnce(t *testing.T) {
	p := &CourseProgress{Lessons: []LessonProgress{
		{LessonIndex: 0}, {LessonIndex: 1}, {LessonIndex: 2},
	}}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	p.Lessons[0].IsCompleted = true
	p.Recompute(now)
	if p.CompletionPercent != 33 {
		t.Fatalf("percent after 1/3: want=33 got=%d", p.CompletionPercent)
	}
	if p.IsCompleted || p.CompletedAt != nil {
		t.Fatalf("course should not be complete after 1/3")
	}

	p.Lessons[1].IsCompleted = true
	p.Lessons[2].IsCompleted = true
	p.Recompute(now)
	if p.CompletionPercent != 100 || !p.IsCompleted || p.CompletedAt == nil || !p.CompletedAt.Equal(now) {
		t.Fatalf("course should be complete: %+v", p)
	}

	p.Recompute(now.Add(time.Hour))
	if !p.CompletedAt.Equal(now) {
		t.Fatalf("completed_at should not move: want=%s got=%s", now, p.CompletedAt)
	}
}

func TestLessonLookup(t *testing.T) {
	p := &CourseProgress{Lessons: []LessonProgress{{LessonIndex: 2}, {LessonIndex: 0}}}
	p.SortLessons()
	if p.Lessons[0].LessonIndex != 0 {
		t.Fatalf("SortLessons: first index want=0 got=%d", p.Lessons[0].LessonIndex)
	}
	if p.Lesson(2) == nil || p.Lesson(1) != nil {
		t.Fatalf("Lesson lookup mismatch")
	}
	if m := p.LessonMap(); len(m) != 2 || m[2] == nil {
		t.Fatalf("LessonMap: got=%v", m)
	}
}
