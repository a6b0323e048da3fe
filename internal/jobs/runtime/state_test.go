package runtime

import (
	"errors"
	"testing"
	"time"

	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
)

func pending() *types.TaskRecord {
	return &types.TaskRecord{Status: jobs.TaskPending}
}

func TestLifecycleHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := pending()

	if err := StartTask(task, now); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if task.StartedAt == nil || !task.StartedAt.Equal(now) {
		t.Fatalf("started_at: want=%s got=%v", now, task.StartedAt)
	}
	for _, pct := range []int{10, 30, 30, 55} {
		if err := ReportProgress(task, "step", pct, now); err != nil {
			t.Fatalf("ReportProgress(%d): %v", pct, err)
		}
	}
	later := now.Add(time.Minute)
	if err := SucceedTask(task, map[string]string{"course_id": "c1"}, later); err != nil {
		t.Fatalf("SucceedTask: %v", err)
	}
	if task.Status != jobs.TaskSuccess || task.ProgressPercent != 100 {
		t.Fatalf("terminal state: %+v", task)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(later) {
		t.Fatalf("completed_at: want=%s got=%v", later, task.CompletedAt)
	}
	if string(task.Result) != `{"course_id":"c1"}` {
		t.Fatalf("result: got=%s", task.Result)
	}
}

func TestInvalidTransitions(t *testing.T) {
	now := time.Now()

	t.Run("pending cannot succeed", func(t *testing.T) {
		task := pending()
		if err := SucceedTask(task, nil, now); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("want ErrInvalidTransition got %v", err)
		}
		if task.Status != jobs.TaskPending {
			t.Fatalf("status changed on rejection: %s", task.Status)
		}
	})

	t.Run("started cannot succeed without progress", func(t *testing.T) {
		task := pending()
		_ = StartTask(task, now)
		if err := SucceedTask(task, nil, now); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("want ErrInvalidTransition got %v", err)
		}
	})

	t.Run("terminal states are final", func(t *testing.T) {
		task := pending()
		_ = StartTask(task, now)
		if err := FailTask(task, "lesson structuring", "boom", now); err != nil {
			t.Fatalf("FailTask: %v", err)
		}
		if err := ReportProgress(task, "x", 90, now); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("progress after failure: want ErrInvalidTransition got %v", err)
		}
		if err := SucceedTask(task, nil, now); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("success after failure: want ErrInvalidTransition got %v", err)
		}
		if err := FailTask(task, "x", "again", now); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("double failure: want ErrInvalidTransition got %v", err)
		}
		if *task.ErrorMessage != "boom" {
			t.Fatalf("error message overwritten: %s", *task.ErrorMessage)
		}
	})

	t.Run("progress never decreases", func(t *testing.T) {
		task := pending()
		_ = StartTask(task, now)
		_ = ReportProgress(task, "a", 55, now)
		if err := ReportProgress(task, "b", 30, now); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("want ErrInvalidTransition got %v", err)
		}
		if task.ProgressPercent != 55 || *task.CurrentStep != "a" {
			t.Fatalf("state changed on rejection: %+v", task)
		}
	})

	t.Run("progress is clamped", func(t *testing.T) {
		task := pending()
		_ = StartTask(task, now)
		if err := ReportProgress(task, "a", 140, now); err != nil {
			t.Fatalf("ReportProgress: %v", err)
		}
		if task.ProgressPercent != 100 {
			t.Fatalf("clamp: want=100 got=%d", task.ProgressPercent)
		}
	})

	t.Run("started_at set once", func(t *testing.T) {
		task := pending()
		_ = StartTask(task, now)
		if err := StartTask(task, now.Add(time.Hour)); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("restart: want ErrInvalidTransition got %v", err)
		}
		if !task.StartedAt.Equal(now) {
			t.Fatalf("started_at moved")
		}
	})
}
