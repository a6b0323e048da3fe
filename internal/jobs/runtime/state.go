package runtime

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
)

/*
The task lifecycle:

	PENDING -> STARTED -> PROGRESS* -> SUCCESS
	                 \________\______-> FAILURE

Every function below mutates t in place and returns a wrapped
ErrInvalidTransition when the move is not on that graph. Callers apply
them to a clone and only adopt the clone once it is persisted.
*/

func invalid(t *types.TaskRecord, to jobs.TaskStatus) error {
	return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, t.Status, to)
}

// StartTask moves a pending task to STARTED and stamps started_at.
func StartTask(t *types.TaskRecord, now time.Time) error {
	if t.Status != jobs.TaskPending {
		return invalid(t, jobs.TaskStarted)
	}
	t.Status = jobs.TaskStarted
	if t.StartedAt == nil {
		ts := now
		t.StartedAt = &ts
	}
	t.UpdatedAt = now
	return nil
}

// ReportProgress records a checkpoint. pct is clamped to 0..100 and may not
// move backwards.
func ReportProgress(t *types.TaskRecord, step string, pct int, now time.Time) error {
	if t.Status != jobs.TaskStarted && t.Status != jobs.TaskProgress {
		return invalid(t, jobs.TaskProgress)
	}
	pct = clampPercent(pct)
	if pct < t.ProgressPercent {
		return fmt.Errorf("%w: progress %d below %d", apperr.ErrInvalidTransition, pct, t.ProgressPercent)
	}
	t.Status = jobs.TaskProgress
	t.ProgressPercent = pct
	s := step
	t.CurrentStep = &s
	t.UpdatedAt = now
	return nil
}

// SucceedTask is only reachable from PROGRESS.
func SucceedTask(t *types.TaskRecord, result any, now time.Time) error {
	if t.Status != jobs.TaskProgress {
		return invalid(t, jobs.TaskSuccess)
	}
	var res datatypes.JSON
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode task result: %w", err)
		}
		res = datatypes.JSON(b)
	}
	t.Status = jobs.TaskSuccess
	t.ProgressPercent = 100
	t.Result = res
	t.ErrorMessage = nil
	ts := now
	t.CompletedAt = &ts
	t.UpdatedAt = now
	return nil
}

// FailTask records a terminal failure from STARTED or PROGRESS.
func FailTask(t *types.TaskRecord, step, message string, now time.Time) error {
	if t.Status != jobs.TaskStarted && t.Status != jobs.TaskProgress {
		return invalid(t, jobs.TaskFailure)
	}
	t.Status = jobs.TaskFailure
	if step != "" {
		s := step
		t.CurrentStep = &s
	}
	msg := message
	t.ErrorMessage = &msg
	ts := now
	t.CompletedAt = &ts
	t.UpdatedAt = now
	return nil
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
