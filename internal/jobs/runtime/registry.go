package runtime

import (
	"fmt"
	"sort"
	"strings"
)

// Handler executes one task type. Run owns the task's lifecycle after Start:
// it must end in Succeed or Fail, otherwise the worker fails the task with the returned error.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

// Registry maps task_type to its handler. It is fixed at construction and
// safe for concurrent lookups.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("nil task handler")
		}
		t := strings.TrimSpace(h.Type())
		if t == "" {
			return nil, fmt.Errorf("task handler %T has an empty type", h)
		}
		if _, dup := r.handlers[t]; dup {
			return nil, fmt.Errorf("task handler already registered for task_type=%s", t)
		}
		r.handlers[t] = h
	}
	return r, nil
}

func (r *Registry) Get(taskType string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[taskType]
	return h, ok
}

// Types lists the registered task types in order.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
