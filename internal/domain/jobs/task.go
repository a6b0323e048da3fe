package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskPending  TaskStatus = "PENDING"
	TaskStarted  TaskStatus = "STARTED"
	TaskProgress TaskStatus = "PROGRESS"
	TaskSuccess  TaskStatus = "SUCCESS"
	TaskFailure  TaskStatus = "FAILURE"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskSuccess || s == TaskFailure
}

const TaskTypeCourseGenerate = "course_generate"

// TaskRecord tracks one asynchronous generation run. The executing pipeline is
// the only writer; everything else reads copies.
type TaskRecord struct {
	TaskID          uuid.UUID      `gorm:"type:uuid;primaryKey;column:task_id" json:"task_id"`
	OwnerID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	TaskType        string         `gorm:"column:task_type;not null;index" json:"task_type"`
	Status          TaskStatus     `gorm:"column:status;not null;index" json:"status"`
	ProgressPercent int            `gorm:"column:progress_percent;not null;default:0" json:"progress_percent"`
	CurrentStep     *string        `gorm:"column:current_step" json:"current_step"`
	Payload         datatypes.JSON `gorm:"column:payload" json:"-"`
	Result          datatypes.JSON `gorm:"column:result" json:"result"`
	ErrorMessage    *string        `gorm:"column:error_message;type:text" json:"error_message"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
	StartedAt       *time.Time     `gorm:"column:started_at" json:"started_at"`
	CompletedAt     *time.Time     `gorm:"column:completed_at" json:"completed_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`

	// RunnerID is set when a run claims the task; only that run may write it afterwards.
	RunnerID    *uuid.UUID `gorm:"type:uuid;column:runner_id" json:"-"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"-"`
}

func (TaskRecord) TableName() string { return "task_record" }

func (t *TaskRecord) BeforeCreate(*gorm.DB) error {
	if t.TaskID == uuid.Nil {
		t.TaskID = uuid.New()
	}
	return nil
}

// Clone returns a deep copy safe to hand to readers.
func (t *TaskRecord) Clone() *TaskRecord {
	if t == nil {
		return nil
	}
	cp := *t
	cp.CurrentStep = cloneString(t.CurrentStep)
	cp.ErrorMessage = cloneString(t.ErrorMessage)
	cp.StartedAt = cloneTime(t.StartedAt)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	cp.HeartbeatAt = cloneTime(t.HeartbeatAt)
	if t.RunnerID != nil {
		id := *t.RunnerID
		cp.RunnerID = &id
	}
	if t.Payload != nil {
		cp.Payload = append(datatypes.JSON(nil), t.Payload...)
	}
	if t.Result != nil {
		cp.Result = append(datatypes.JSON(nil), t.Result...)
	}
	return &cp
}

type EventKind string

const (
	EventStatus    EventKind = "status"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventStatus, EventProgress, EventCompleted, EventFailed:
		return true
	}
	return false
}

func (k EventKind) Terminal() bool {
	return k == EventCompleted || k == EventFailed
}

// TaskEvent is the progress message that crosses the transport boundary.
type TaskEvent struct {
	Event           EventKind       `json:"event"`
	TaskID          string          `json:"task_id"`
	Status          TaskStatus      `json:"status,omitempty"`
	ProgressPercent *int            `json:"progress_percent,omitempty"`
	CurrentStep     *string         `json:"current_step,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           *string         `json:"error,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// Snapshot describes the full current state of t. Terminal records produce
// their terminal event kind so a late reader sees completion immediately.
func (t *TaskRecord) Snapshot() TaskEvent {
	kind := EventStatus
	switch t.Status {
	case TaskSuccess:
		kind = EventCompleted
	case TaskFailure:
		kind = EventFailed
	}
	return t.Event(kind)
}

// Event builds an event of the given kind carrying every field of t.
func (t *TaskRecord) Event(kind EventKind) TaskEvent {
	pct := t.ProgressPercent
	created := t.CreatedAt
	ev := TaskEvent{
		Event:           kind,
		TaskID:          t.TaskID.String(),
		Status:          t.Status,
		ProgressPercent: &pct,
		CurrentStep:     cloneString(t.CurrentStep),
		Error:           cloneString(t.ErrorMessage),
		StartedAt:       cloneTime(t.StartedAt),
		CompletedAt:     cloneTime(t.CompletedAt),
	}
	if !created.IsZero() {
		ev.CreatedAt = &created
	}
	if len(t.Result) > 0 {
		ev.Result = append(json.RawMessage(nil), t.Result...)
	}
	return ev
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
