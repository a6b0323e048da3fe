package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/recollection-backend/internal/http/response"
	"github.com/yungbote/recollection-backend/internal/services"
)

type CourseHandler struct {
	courses services.CourseService
}

func NewCourseHandler(courses services.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// GET /api/courses
func (h *CourseHandler) ListUserCourses(c *gin.Context) {
	list, err := h.courses.ListForRequestUser(dbcOf(c), limitQuery(c))
	if err != nil {
		response.RespondServiceError(c, err, "list_courses_failed")
		return
	}
	response.RespondOK(c, gin.H{"courses": list})
}

// GET /api/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_course_id")
	if !ok {
		return
	}
	found, err := h.courses.GetForRequestUser(dbcOf(c), id)
	if err != nil {
		response.RespondServiceError(c, err, "get_course_failed")
		return
	}
	response.RespondOK(c, gin.H{"course": found})
}
