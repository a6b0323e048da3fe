package bus

import (
	"context"

	"github.com/yungbote/recollection-backend/internal/domain/jobs"
)

// Bus carries task events between processes. Every process forwards what it
// receives into its local hub, its own publications included.
type Bus interface {
	Publish(ctx context.Context, ev jobs.TaskEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev jobs.TaskEvent)) error
	Close() error
}
