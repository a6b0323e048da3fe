package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/http/middleware"
	"github.com/yungbote/recollection-backend/internal/http/response"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
	"github.com/yungbote/recollection-backend/internal/realtime"
	"github.com/yungbote/recollection-backend/internal/services"
)

// TaskStream attaches to a task's live events.
type TaskStream interface {
	Subscribe(ctx context.Context, taskID uuid.UUID) (*realtime.Subscription, error)
}

type TaskHandler struct {
	log       *logger.Logger
	gen       services.GenerationService
	stream    TaskStream
	upgrader  websocket.Upgrader
	heartbeat time.Duration
}

func NewTaskHandler(log *logger.Logger, gen services.GenerationService, stream TaskStream, allowedOrigins []string) *TaskHandler {
	h := &TaskHandler{
		log:       log.With("handler", "TaskHandler"),
		gen:       gen,
		stream:    stream,
		heartbeat: 15 * time.Second,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     middleware.OriginChecker(allowedOrigins),
	}
	return h
}

type generateRequest struct {
	ContentIDs []string `json:"content_ids" binding:"required,min=1,dive,uuid"`
}

// POST /api/courses/generate
func (h *TaskHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	ids := make([]uuid.UUID, 0, len(req.ContentIDs))
	for _, raw := range req.ContentIDs {
		ids = append(ids, uuid.MustParse(raw))
	}
	task, err := h.gen.EnqueueForRequestUser(dbcOf(c), ids)
	if err != nil {
		response.RespondServiceError(c, err, "generate_course_failed")
		return
	}
	response.RespondAccepted(c, gin.H{"task_id": task.TaskID, "status": task.Status})
}

// GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_task_id")
	if !ok {
		return
	}
	task, err := h.gen.GetTaskForRequestUser(dbcOf(c), id)
	if err != nil {
		response.RespondServiceError(c, err, "get_task_failed")
		return
	}
	response.RespondOK(c, task.Snapshot())
}

// GET /api/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	list, err := h.gen.ListTasksForRequestUser(dbcOf(c), limitQuery(c))
	if err != nil {
		response.RespondServiceError(c, err, "list_tasks_failed")
		return
	}
	out := make([]jobs.TaskEvent, 0, len(list))
	for _, t := range list {
		out = append(out, t.Snapshot())
	}
	response.RespondOK(c, gin.H{"tasks": out})
}

// subscribe checks ownership and attaches to the task stream. It answers the
// request itself on failure.
func (h *TaskHandler) subscribe(c *gin.Context) (*realtime.Subscription, bool) {
	id, ok := uuidParam(c, "id", "invalid_task_id")
	if !ok {
		return nil, false
	}
	if _, err := h.gen.GetTaskForRequestUser(dbcOf(c), id); err != nil {
		response.RespondServiceError(c, err, "get_task_failed")
		return nil, false
	}
	sub, err := h.stream.Subscribe(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, "subscribe_failed")
		return nil, false
	}
	return sub, true
}

/*
GET /api/tasks/:id/events
Server-sent events. Each task event is written as:
	event: <status|progress|completed|failed>
	data: <TaskEvent JSON>
The response ends after the terminal event.
*/
func (h *TaskHandler) StreamSSE(c *gin.Context) {
	sub, ok := h.subscribe(c)
	if !ok {
		return
	}
	defer sub.Close()

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("SSE client gone", "task_id", sub.TaskID, "subscriber", sub.ID)
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			w.Flush()
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Warn("Failed to marshal task event", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data)
			w.Flush()
		}
	}
}

/*
GET /ws/tasks/:id
WebSocket stream of TaskEvent JSON messages. Unknown tasks are refused with 404
before the upgrade. A text "ping" from the client is answered with
{"event":"pong"} and never touches the task. After the terminal event the server
closes with a normal closure.
*/
func (h *TaskHandler) StreamWS(c *gin.Context) {
	sub, ok := h.subscribe(c)
	if !ok {
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade to websocket", "task_id", sub.TaskID, "error", err)
		return
	}
	defer conn.Close()
	h.log.Debug("Task websocket connected", "task_id", sub.TaskID, "subscriber", sub.ID)

	pings := make(chan struct{}, 4)
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug("Task websocket read error", "task_id", sub.TaskID, "error", err)
				}
				return
			}
			if strings.TrimSpace(string(msg)) == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v) == nil
	}
	for {
		select {
		case <-gone:
			return
		case <-pings:
			if !write(gin.H{"event": "pong"}) {
				return
			}
		case ev, open := <-sub.Events():
			if !open {
				deadline := time.Now().Add(time.Second)
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"), deadline)
				// Give the client a moment to answer the close frame.
				select {
				case <-gone:
				case <-time.After(time.Second):
				}
				return
			}
			if !write(ev) {
				return
			}
		}
	}
}
