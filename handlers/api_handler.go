package handlers

import (
	"net/http"

	"clinical-annotator/highlight"
	"clinical-annotator/service"
	"clinical-annotator/storage"

	"github.com/gin-gonic/gin"
)

// APIHandler handles the JSON endpoints
type APIHandler struct {
	annotationService *service.AnnotationService
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(annotationService *service.AnnotationService) *APIHandler {
	return &APIHandler{annotationService: annotationService}
}

// HighlightRequest represents the request body for highlighting a text
type HighlightRequest struct {
	Text     *string  `json:"text" binding:"required"`
	Keywords []string `json:"keywords"`
	Evidence []string `json:"evidence"`
}

// Health handles GET /health
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Highlight handles POST /api/highlight
func (h *APIHandler) Highlight(c *gin.Context) {
	var req HighlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	spans := highlight.FindSpans(*req.Text, req.Keywords, req.Evidence)
	if spans == nil {
		spans = []highlight.Span{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"html":  highlight.Highlight(*req.Text, req.Keywords, req.Evidence),
			"spans": spans,
		},
	})
}

// ListDocuments handles GET /api/documents
func (h *APIHandler) ListDocuments(c *gin.Context) {
	names, err := h.annotationService.ListDocuments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": err.Error(),
			},
		})
		return
	}
	if names == nil {
		names = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    names,
	})
}

// DeleteDocument handles DELETE /api/documents/:name
func (h *APIHandler) DeleteDocument(c *gin.Context) {
	name := c.Param("name")
	if _, err := storage.SanitizeName(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_NAME",
				"message": err.Error(),
			},
		})
		return
	}

	if err := h.annotationService.DeleteDocument(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DELETE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"name": name,
		},
	})
}
