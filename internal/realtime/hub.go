package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// TaskStore is the fallback for tasks the hub holds no snapshot for.
type TaskStore interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TaskRecord, error)
}

type taskEntry struct {
	latest    jobs.TaskEvent
	terminal  bool
	updatedAt time.Time
	subs      map[*Subscription]struct{}
}

// Subscription is one live stream of a task's events. The channel is closed
// after the terminal event, or when the subscriber calls Close.
type Subscription struct {
	ID     uuid.UUID
	TaskID string

	hub    *Hub
	events chan jobs.TaskEvent
	closed bool
}

func (s *Subscription) Events() <-chan jobs.TaskEvent { return s.events }

// Close detaches the subscriber. The task is not affected. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.detachLocked(s)
}

/*
Hub fans task events out to subscribers.
Guarantees:
	- A subscriber first receives the latest snapshot, then every event published after it attached
	- progress_percent seen by a subscriber never decreases
	- The terminal event is the last message, after which the stream closes
	- Nothing is published for a task after its terminal event
Publish and Subscribe are serialized by one mutex, so a snapshot is never older
than the moment the subscriber attached.
*/
type Hub struct {
	mu      sync.Mutex
	log     *logger.Logger
	store   TaskStore
	bufSize int
	now     func() time.Time
	tasks   map[string]*taskEntry
}

func NewHub(baseLog *logger.Logger, store TaskStore, bufSize int) *Hub {
	if bufSize < 2 {
		bufSize = 32
	}
	return &Hub{
		log:     baseLog.With("component", "TaskHub"),
		store:   store,
		bufSize: bufSize,
		now:     time.Now,
		tasks:   make(map[string]*taskEntry),
	}
}

func snapshotOf(ev jobs.TaskEvent) jobs.TaskEvent {
	if !ev.Event.Terminal() {
		ev.Event = jobs.EventStatus
	}
	return ev
}

func percentOf(ev jobs.TaskEvent) int {
	if ev.ProgressPercent == nil {
		return 0
	}
	return *ev.ProgressPercent
}

// Publish delivers ev to every subscriber of its task.
func (h *Hub) Publish(ev jobs.TaskEvent) {
	if ev.TaskID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.tasks[ev.TaskID]
	if !ok {
		e = &taskEntry{subs: make(map[*Subscription]struct{})}
		h.tasks[ev.TaskID] = e
	} else {
		if e.terminal {
			h.log.Warn("Dropping event after terminal state", "task_id", ev.TaskID, "event", ev.Event)
			return
		}
		if ev.ProgressPercent != nil && *ev.ProgressPercent < percentOf(e.latest) {
			h.log.Warn("Dropping progress regression", "task_id", ev.TaskID, "from", percentOf(e.latest), "to", *ev.ProgressPercent)
			return
		}
	}
	e.latest = ev
	e.updatedAt = h.now()

	terminal := ev.Event.Terminal()
	for s := range e.subs {
		h.deliverLocked(s, ev, terminal)
	}
	if terminal {
		e.terminal = true
		for s := range e.subs {
			s.closed = true
			close(s.events)
		}
		e.subs = make(map[*Subscription]struct{})
	}
}

func (h *Hub) deliverLocked(s *Subscription, ev jobs.TaskEvent, terminal bool) {
	select {
	case s.events <- ev:
		return
	default:
	}
	if !terminal {
		h.log.Warn("Dropping task event; subscriber buffer full", "task_id", s.TaskID, "subscriber", s.ID)
		return
	}
	// The terminal event must arrive; make room by discarding the oldest.
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- ev:
	default:
		h.log.Warn("Could not deliver terminal event", "task_id", s.TaskID, "subscriber", s.ID)
	}
}

func (h *Hub) detachLocked(s *Subscription) {
	if s.closed {
		return
	}
	s.closed = true
	if e, ok := h.tasks[s.TaskID]; ok {
		delete(e.subs, s)
	}
	close(s.events)
}

/*
Subscribe attaches to a task's stream. The first event is always the current
snapshot; for a terminal task that snapshot is the terminal event and the stream
is already closed. Tasks without an in-memory snapshot are read from the store,
whose not-found error is returned as is.
*/
func (h *Hub) Subscribe(ctx context.Context, taskID uuid.UUID) (*Subscription, error) {
	key := taskID.String()

	h.mu.Lock()
	if e, ok := h.tasks[key]; ok {
		s := h.attachLocked(key, e)
		h.mu.Unlock()
		return s, nil
	}
	h.mu.Unlock()

	rec, err := h.store.GetByID(dbctx.Context{Ctx: ctx}, taskID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// A publish may have created the entry while the store was read; it is newer.
	e, ok := h.tasks[key]
	if !ok {
		snap := rec.Snapshot()
		e = &taskEntry{
			latest:    snap,
			terminal:  snap.Event.Terminal(),
			updatedAt: h.now(),
			subs:      make(map[*Subscription]struct{}),
		}
		h.tasks[key] = e
	}
	return h.attachLocked(key, e), nil
}

func (h *Hub) attachLocked(key string, e *taskEntry) *Subscription {
	s := &Subscription{
		ID:     uuid.New(),
		TaskID: key,
		hub:    h,
		events: make(chan jobs.TaskEvent, h.bufSize),
	}
	s.events <- snapshotOf(e.latest)
	if e.terminal {
		s.closed = true
		close(s.events)
		return s
	}
	e.subs[s] = struct{}{}
	h.log.Debug("Task subscriber attached", "task_id", key, "subscriber", s.ID, "subscribers", len(e.subs))
	return s
}

// Latest returns the in-memory snapshot of a task, if any.
func (h *Hub) Latest(taskID uuid.UUID) (jobs.TaskEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.tasks[taskID.String()]
	if !ok {
		return jobs.TaskEvent{}, false
	}
	return snapshotOf(e.latest), true
}

// Evict drops snapshots without subscribers that have not changed for retention.
// Later subscribers are served from the store.
func (h *Hub) Evict(retention time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := h.now().Add(-retention)
	n := 0
	for id, e := range h.tasks {
		if len(e.subs) == 0 && e.updatedAt.Before(cutoff) {
			delete(h.tasks, id)
			n++
		}
	}
	return n
}

// Schedule registers periodic eviction on c.
func (h *Hub) Schedule(c *cron.Cron, spec string, retention time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if n := h.Evict(retention); n > 0 {
			h.log.Debug("Evicted task snapshots", "count", n)
		}
	})
}
