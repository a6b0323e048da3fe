package bus

import (
	"context"
	"time"

	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// Local is the in-process side of the broadcaster.
type Local interface {
	Publish(ev jobs.TaskEvent)
}

// Emitter is the task notifier when a bus is configured. Events go out over the
// bus and come back through the forwarder; if the bus rejects an event it is
// delivered locally instead so this process's subscribers still see it.
type Emitter struct {
	log     *logger.Logger
	bus     Bus
	local   Local
	timeout time.Duration
}

func NewEmitter(baseLog *logger.Logger, bus Bus, local Local) *Emitter {
	return &Emitter{
		log:     baseLog.With("component", "TaskEmitter"),
		bus:     bus,
		local:   local,
		timeout: 2 * time.Second,
	}
}

func (e *Emitter) Publish(ev jobs.TaskEvent) {
	if e.bus == nil {
		e.local.Publish(ev)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := e.bus.Publish(ctx, ev); err != nil {
		e.log.Warn("Bus publish failed; delivering locally", "task_id", ev.TaskID, "event", ev.Event, "error", err)
		e.local.Publish(ev)
	}
}
