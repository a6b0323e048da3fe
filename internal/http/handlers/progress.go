package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/recollection-backend/internal/http/response"
	"github.com/yungbote/recollection-backend/internal/services"
)

type ProgressHandler struct {
	tracker services.ProgressTracker
}

func NewProgressHandler(tracker services.ProgressTracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

func lessonParams(c *gin.Context) (uuid.UUID, int, bool) {
	courseID, ok := uuidParam(c, "id", "invalid_course_id")
	if !ok {
		return uuid.Nil, 0, false
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err == nil && index < 0 {
		err = errors.New("lesson index must not be negative")
	}
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_lesson_index", err)
		return uuid.Nil, 0, false
	}
	return courseID, index, true
}

// POST /api/courses/:id/progress/start
func (h *ProgressHandler) Start(c *gin.Context) {
	courseID, ok := uuidParam(c, "id", "invalid_course_id")
	if !ok {
		return
	}
	p, err := h.tracker.Start(dbcOf(c), courseID)
	if err != nil {
		response.RespondServiceError(c, err, "start_course_failed")
		return
	}
	response.RespondOK(c, gin.H{"progress": p})
}

// GET /api/courses/:id/progress
func (h *ProgressHandler) Get(c *gin.Context) {
	courseID, ok := uuidParam(c, "id", "invalid_course_id")
	if !ok {
		return
	}
	p, err := h.tracker.Get(dbcOf(c), courseID)
	if err != nil {
		response.RespondServiceError(c, err, "get_progress_failed")
		return
	}
	response.RespondOK(c, gin.H{"progress": p})
}

type markCompleteRequest struct {
	Manual *bool `json:"manual"`
}

// POST /api/courses/:id/progress/lessons/:index/complete
func (h *ProgressHandler) MarkComplete(c *gin.Context) {
	courseID, index, ok := lessonParams(c)
	if !ok {
		return
	}
	var req markCompleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondBindError(c, err)
			return
		}
	}
	manual := true
	if req.Manual != nil {
		manual = *req.Manual
	}
	p, err := h.tracker.MarkComplete(dbcOf(c), courseID, index, manual)
	if err != nil {
		response.RespondServiceError(c, err, "mark_complete_failed")
		return
	}
	response.RespondOK(c, gin.H{"progress": p})
}

type recordTimeRequest struct {
	Seconds *int `json:"seconds" binding:"required,gte=0"`
}

// POST /api/courses/:id/progress/lessons/:index/time
func (h *ProgressHandler) RecordTime(c *gin.Context) {
	courseID, index, ok := lessonParams(c)
	if !ok {
		return
	}
	var req recordTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	p, err := h.tracker.RecordTime(dbcOf(c), courseID, index, *req.Seconds)
	if err != nil {
		response.RespondServiceError(c, err, "record_time_failed")
		return
	}
	response.RespondOK(c, gin.H{"progress": p})
}
