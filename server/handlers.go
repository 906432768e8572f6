package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/birucan/lawcite"
)

type handler struct {
	svc lawcite.Service
}

type createDocumentsRequest struct {
	FilePath     string `json:"file_path" binding:"required"`
	AISectioning *bool  `json:"ai_sectioning"`
}

type queryRequest struct {
	Query        string `json:"query" binding:"required"`
	FilePath     string `json:"file_path" binding:"required"`
	AISectioning *bool  `json:"ai_sectioning"`
}

// POST /create_documents
// ai_sectioning defaults to false.
func (h *handler) handleCreateDocuments(c *gin.Context) {
	var req createDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	sections, err := h.svc.CreateDocuments(c.Request.Context(), req.FilePath,
		lawcite.WithModelAssist(req.AISectioning != nil && *req.AISectioning))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sections)
}

// POST /query
// ai_sectioning defaults to true.
func (h *handler) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	res, err := h.svc.Query(c.Request.Context(), req.Query, req.FilePath,
		lawcite.WithModelAssist(req.AISectioning == nil || *req.AISectioning))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /health
func (h *handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeServiceError maps the service error taxonomy to HTTP status codes.
// A degraded query still returns what was retrieved.
func writeServiceError(c *gin.Context, err error) {
	c.Error(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lawcite.ErrEmptyQuery):
		status = http.StatusBadRequest
	case errors.Is(err, lawcite.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lawcite.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, lawcite.ErrBackendUnavailable):
		status = http.StatusBadGateway
	}

	body := gin.H{"error": err.Error()}
	var de *lawcite.DegradedError
	if errors.As(err, &de) {
		body["query"] = de.Query
		body["citations"] = de.Citations
	}
	c.JSON(status, body)
}
