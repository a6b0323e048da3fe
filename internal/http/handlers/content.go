package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/recollection-backend/internal/domain/content"
	"github.com/yungbote/recollection-backend/internal/http/response"
	"github.com/yungbote/recollection-backend/internal/services"
)

type ContentHandler struct {
	contents services.ContentService
}

func NewContentHandler(contents services.ContentService) *ContentHandler {
	return &ContentHandler{contents: contents}
}

type createContentRequest struct {
	Source struct {
		Link   string         `json:"link" binding:"required"`
		Author string         `json:"author"`
		Origin string         `json:"origin"`
		Format content.Format `json:"format" binding:"required,oneof=pdf web youtube text"`
	} `json:"source" binding:"required"`
	RawText string          `json:"raw_text"`
	Summary content.Summary `json:"summary"`
}

// POST /api/contents
func (h *ContentHandler) Create(c *gin.Context) {
	var req createContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	created, err := h.contents.CreateForRequestUser(dbcOf(c), &content.Content{
		Source: content.Source{
			Link:   req.Source.Link,
			Author: req.Source.Author,
			Origin: req.Source.Origin,
			Format: req.Source.Format,
		},
		RawText: req.RawText,
		Summary: req.Summary,
	})
	if err != nil {
		response.RespondServiceError(c, err, "create_content_failed")
		return
	}
	response.RespondCreated(c, gin.H{"content": created})
}

// GET /api/contents/:id
func (h *ContentHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	found, err := h.contents.GetForRequestUser(dbcOf(c), id)
	if err != nil {
		response.RespondServiceError(c, err, "get_content_failed")
		return
	}
	response.RespondOK(c, gin.H{"content": found})
}

// GET /api/contents
func (h *ContentHandler) List(c *gin.Context) {
	list, err := h.contents.ListForRequestUser(dbcOf(c), limitQuery(c))
	if err != nil {
		response.RespondServiceError(c, err, "list_contents_failed")
		return
	}
	response.RespondOK(c, gin.H{"contents": list})
}
