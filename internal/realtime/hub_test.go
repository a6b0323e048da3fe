package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/recollection-backend/internal/domain"
	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/dbctx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

type mapStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*types.TaskRecord
}

func (m *mapStore) GetByID(_ dbctx.Context, id uuid.UUID) (*types.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return t.Clone(), nil
}

func newStore(tasks ...*types.TaskRecord) *mapStore {
	m := &mapStore{tasks: map[uuid.UUID]*types.TaskRecord{}}
	for _, t := range tasks {
		m.tasks[t.TaskID] = t
	}
	return m
}

func event(id uuid.UUID, kind jobs.EventKind, status jobs.TaskStatus, pct int) jobs.TaskEvent {
	p := pct
	return jobs.TaskEvent{Event: kind, TaskID: id.String(), Status: status, ProgressPercent: &p}
}

func recv(t *testing.T, s *Subscription) (jobs.TaskEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		return ev, ok
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for task event")
	}
	return jobs.TaskEvent{}, false
}

func TestLateSubscriberToFinishedTaskGetsCompletedAndClose(t *testing.T) {
	now := time.Now().UTC()
	done := &types.TaskRecord{TaskID: uuid.New(), Status: jobs.TaskSuccess, ProgressPercent: 100, Result: []byte(`{"course_id":"c"}`), CompletedAt: &now}
	hub := NewHub(logger.Nop(), newStore(done), 4)

	s, err := hub.Subscribe(context.Background(), done.TaskID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	ev, ok := recv(t, s)
	if !ok || ev.Event != jobs.EventCompleted || string(ev.Result) != `{"course_id":"c"}` {
		t.Fatalf("first event: ok=%v ev=%+v", ok, ev)
	}
	if _, ok := recv(t, s); ok {
		t.Fatalf("stream should be closed after the terminal event")
	}
	s.Close()
}

func TestUnknownTask(t *testing.T) {
	hub := NewHub(logger.Nop(), newStore(), 4)
	if _, err := hub.Subscribe(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want ErrNotFound got %v", err)
	}
}

func TestSubscriberSeesOrderedNonDecreasingProgress(t *testing.T) {
	id := uuid.New()
	hub := NewHub(logger.Nop(), newStore(&types.TaskRecord{TaskID: id, Status: jobs.TaskPending}), 16)

	a, _ := hub.Subscribe(context.Background(), id)
	b, _ := hub.Subscribe(context.Background(), id)

	hub.Publish(event(id, jobs.EventStatus, jobs.TaskStarted, 0))
	hub.Publish(event(id, jobs.EventProgress, jobs.TaskProgress, 10))
	hub.Publish(event(id, jobs.EventProgress, jobs.TaskProgress, 55))
	hub.Publish(event(id, jobs.EventProgress, jobs.TaskProgress, 30))
	hub.Publish(event(id, jobs.EventCompleted, jobs.TaskSuccess, 100))
	hub.Publish(event(id, jobs.EventProgress, jobs.TaskProgress, 100))

	for _, s := range []*Subscription{a, b} {
		var kinds []jobs.EventKind
		last := -1
		for {
			ev, ok := recv(t, s)
			if !ok {
				break
			}
			kinds = append(kinds, ev.Event)
			if p := *ev.ProgressPercent; p < last {
				t.Fatalf("progress went backwards: %d after %d", p, last)
			} else {
				last = p
			}
		}
		want := []jobs.EventKind{jobs.EventStatus, jobs.EventStatus, jobs.EventProgress, jobs.EventProgress, jobs.EventCompleted}
		if len(kinds) != len(want) {
			t.Fatalf("events: want=%v got=%v", want, kinds)
		}
		for i := range want {
			if kinds[i] != want[i] {
				t.Fatalf("events: want=%v got=%v", want, kinds)
			}
		}
	}
}

func TestReconnectReceivesLatestSnapshot(t *testing.T) {
	id := uuid.New()
	hub := NewHub(logger.Nop(), newStore(&types.TaskRecord{TaskID: id, Status: jobs.TaskPending}), 16)

	first, _ := hub.Subscribe(context.Background(), id)
	hub.Publish(event(id, jobs.EventProgress, jobs.TaskProgress, 30))
	first.Close()
	first.Close()
	hub.Publish(event(id, jobs.EventProgress, jobs.TaskProgress, 55))

	again, err := hub.Subscribe(context.Background(), id)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	ev, _ := recv(t, again)
	if ev.Event != jobs.EventStatus || *ev.ProgressPercent != 55 || ev.Status != jobs.TaskProgress {
		t.Fatalf("snapshot: %+v", ev)
	}
	again.Close()
}

func TestTerminalEventSurvivesFullBuffer(t *testing.T) {
	id := uuid.New()
	hub := NewHub(logger.Nop(), newStore(&types.TaskRecord{TaskID: id, Status: jobs.TaskPending}), 2)

	s, _ := hub.Subscribe(context.Background(), id)
	hub.Publish(event(id, jobs.EventProgress, jobs.TaskProgress, 10))
	hub.Publish(event(id, jobs.EventProgress, jobs.TaskProgress, 30))
	hub.Publish(event(id, jobs.EventFailed, jobs.TaskFailure, 30))

	var last jobs.TaskEvent
	for {
		ev, ok := recv(t, s)
		if !ok {
			break
		}
		last = ev
	}
	if last.Event != jobs.EventFailed {
		t.Fatalf("last event: want=failed got=%s", last.Event)
	}
}

func TestEvict(t *testing.T) {
	id := uuid.New()
	store := newStore(&types.TaskRecord{TaskID: id, Status: jobs.TaskPending})
	hub := NewHub(logger.Nop(), store, 4)
	clock := time.Now()
	hub.now = func() time.Time { return clock }

	hub.Publish(event(id, jobs.EventCompleted, jobs.TaskSuccess, 100))
	if n := hub.Evict(time.Minute); n != 0 {
		t.Fatalf("fresh snapshot evicted")
	}
	clock = clock.Add(2 * time.Minute)
	if n := hub.Evict(time.Minute); n != 1 {
		t.Fatalf("Evict: want=1 got=%d", n)
	}
	if _, ok := hub.Latest(id); ok {
		t.Fatalf("snapshot still present after eviction")
	}

	// After eviction the store answers.
	s, err := hub.Subscribe(context.Background(), id)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	ev, _ := recv(t, s)
	if ev.Status != jobs.TaskPending {
		t.Fatalf("store snapshot: %+v", ev)
	}
	s.Close()
}

func TestConcurrentSubscribeAndPublish(t *testing.T) {
	id := uuid.New()
	hub := NewHub(logger.Nop(), newStore(&types.TaskRecord{TaskID: id, Status: jobs.TaskPending}), 128)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := hub.Subscribe(context.Background(), id)
			if err != nil {
				t.Errorf("Subscribe: %v", err)
				return
			}
			last := -1
			for ev := range s.Events() {
				if *ev.ProgressPercent < last {
					t.Errorf("progress went backwards: %d after %d", *ev.ProgressPercent, last)
				}
				last = *ev.ProgressPercent
			}
		}()
	}
	for pct := 1; pct <= 99; pct++ {
		hub.Publish(event(id, jobs.EventProgress, jobs.TaskProgress, pct))
	}
	hub.Publish(event(id, jobs.EventCompleted, jobs.TaskSuccess, 100))
	wg.Wait()
}
