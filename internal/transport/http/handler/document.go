package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"finrag/internal/app"
	"finrag/internal/transport/http/response"
)

// multipartSlack covers form fields and boundaries around the file part.
const multipartSlack = 1 << 20

type DocumentHandler struct {
	documents *app.DocumentService
	maxUpload int64
	dev       bool
}

func NewDocumentHandler(documents *app.DocumentService, maxUpload int64, dev bool) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUpload: maxUpload, dev: dev}
}

type PatchDocumentRequest struct {
	Metadata map[string]interface{} `json:"metadata" binding:"required"`
}

// Upload accepts a multipart form with "file" (pdf, txt or md) and optional
// "title", "id", "chunkSize", "chunkOverlap" and "metadata" (JSON object).
func (h *DocumentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartSlack)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			response.Error(c, http.StatusBadRequest, "file_too_large", "upload exceeds the size limit")
			return
		}
		response.Error(c, http.StatusBadRequest, "missing_file", "multipart field \"file\" is required")
		return
	}

	chunkSize, ok := formInt(c, "chunkSize")
	if !ok {
		response.Error(c, http.StatusBadRequest, "invalid_chunking", "chunkSize must be an integer")
		return
	}
	var chunkOverlap *int
	if raw := strings.TrimSpace(c.PostForm("chunkOverlap")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid_chunking", "chunkOverlap must be an integer")
			return
		}
		chunkOverlap = &v
	}

	var metadata map[string]interface{}
	if raw := strings.TrimSpace(c.PostForm("metadata")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			response.Error(c, http.StatusBadRequest, "invalid_metadata", "metadata must be a JSON object")
			return
		}
	}

	f, err := file.Open()
	if err != nil {
		writeError(c, err, h.dev)
		return
	}
	defer f.Close()

	result, err := h.documents.Upload(c.Request.Context(), app.UploadInput{
		ID:           c.PostForm("id"),
		Title:        c.PostForm("title"),
		FileName:     file.Filename,
		Size:         file.Size,
		Content:      f,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Metadata:     metadata,
	})
	if err != nil {
		writeError(c, err, h.dev)
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		response.Error(c, http.StatusBadRequest, "invalid_pagination", "page must be an integer")
		return
	}
	pageSize, ok := queryInt(c, "pageSize")
	if !ok {
		response.Error(c, http.StatusBadRequest, "invalid_pagination", "pageSize must be an integer")
		return
	}

	list, err := h.documents.List(c.Request.Context(), page, pageSize)
	if err != nil {
		writeError(c, err, h.dev)
		return
	}
	response.OK(c, list)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, h.dev)
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Patch(c *gin.Context) {
	var req PatchDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "body must be {\"metadata\": {...}}")
		return
	}
	doc, err := h.documents.PatchMetadata(c.Request.Context(), c.Param("id"), req.Metadata)
	if err != nil {
		writeError(c, err, h.dev)
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, h.dev)
		return
	}
	response.OK(c, gin.H{"deleted": true, "documentId": id})
}

func (h *DocumentHandler) Reindex(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	result, err := h.documents.Reindex(c.Request.Context(), c.Param("id"), force)
	if err != nil {
		writeError(c, err, h.dev)
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.documents.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err, h.dev)
		return
	}
	response.OK(c, stats)
}

func formInt(c *gin.Context, key string) (int, bool) {
	return parseOptionalInt(c.PostForm(key))
}

func queryInt(c *gin.Context, key string) (int, bool) {
	return parseOptionalInt(c.Query(key))
}

func parseOptionalInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
