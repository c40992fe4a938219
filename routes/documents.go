package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"study-assistant/internal/config"
	"study-assistant/internal/logger"
	"study-assistant/middleware"
	"study-assistant/models"
	"study-assistant/services"
	"study-assistant/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// mime's builtin table has no entry for plain text files.
var textExtensions = map[string]string{
	".txt":      services.MimeTypePlainText,
	".text":     services.MimeTypePlainText,
	".md":       services.MimeTypePlainText,
	".markdown": services.MimeTypePlainText,
}

// ReindexEnqueuer schedules a background rebuild of one document's index.
type ReindexEnqueuer interface {
	EnqueueReindex(ctx context.Context, documentID string) (string, error)
}

type DocumentHandler struct {
	cfg      *config.Config
	analysis *services.AnalysisService
	docs     *services.DocumentService
	enqueuer ReindexEnqueuer
}

func NewDocumentHandler(cfg *config.Config, analysis *services.AnalysisService, docs *services.DocumentService, enqueuer ReindexEnqueuer) *DocumentHandler {
	return &DocumentHandler{cfg: cfg, analysis: analysis, docs: docs, enqueuer: enqueuer}
}

// SetupDocumentRoutes registers the analysis and document endpoints under /api.
func SetupDocumentRoutes(router *gin.Engine, h *DocumentHandler) {
	api := router.Group("/api")
	{
		api.POST("/analyze", middleware.RequestSizeLimit(h.cfg.MaxFileSize), h.Analyze)

		documents := api.Group("/documents")
		documents.GET("", h.List)
		documents.GET("/:id", h.Get)
		documents.DELETE("/:id", h.Delete)
		documents.POST("/:id/search", h.Search)
		documents.POST("/:id/context", h.Context)
		documents.POST("/:id/reindex", h.Reindex)
		documents.GET("/:id/export", h.Export)
	}
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// Analyze runs the full pipeline on an uploaded file.
func (h *DocumentHandler) Analyze(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(h.cfg.MaxFileSize); err != nil {
		utils.RespondWithBadRequest(c, "Invalid multipart upload", err.Error())
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No file provided", nil)
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxFileSize {
		utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
			"File size exceeds maximum limit",
			gin.H{"max_size_mb": h.cfg.MaxFileSize / (1024 * 1024)})
		return
	}

	mimeType := uploadMimeType(header.Header.Get("Content-Type"), header.Filename)
	if !h.cfg.IsAllowedType(mimeType) {
		utils.RespondWithError(c, http.StatusBadRequest, "unsupported_file_type",
			fmt.Sprintf("Unsupported file type: %s", mimeType),
			gin.H{"allowed_types": h.cfg.AllowedTypes})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
		return
	}

	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	record, err := h.analysis.Analyze(ctx, services.AnalyzeInput{
		Data:     data,
		FileName: header.Filename,
		MimeType: mimeType,
	})
	if err != nil {
		respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func respondAnalysisError(c *gin.Context, err error) {
	var details interface{}
	var analysisErr *services.AnalysisError
	if errors.As(err, &analysisErr) {
		details = gin.H{"failed_step": analysisErr.Step, "steps": analysisErr.Steps}
	}

	switch {
	case errors.Is(err, services.ErrUnsupportedType):
		utils.RespondWithError(c, http.StatusBadRequest, "unsupported_file_type", err.Error(), details)
	case errors.Is(err, services.ErrEmptyInput):
		utils.RespondWithError(c, http.StatusBadRequest, "empty_file", "Uploaded file is empty", details)
	case errors.Is(err, services.ErrParseFailed):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, "parse_failed", "Document could not be parsed", details)
	case errors.Is(err, services.ErrEmbeddingIndex):
		logger.Error("Embedding index unavailable", "error", err)
		utils.RespondWithError(c, http.StatusServiceUnavailable, "index_unavailable", "Embedding index is unavailable", details)
	default:
		logger.Error("Document analysis failed", "error", err)
		utils.RespondWithInternalError(c, "Document analysis failed", details)
	}
}

// List returns the stored documents, newest first.
func (h *DocumentHandler) List(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	documents, err := h.docs.List(ctx)
	if err != nil {
		logger.Error("Failed to list documents", "error", err)
		utils.RespondWithServiceUnavailable(c, "store_unavailable", "Failed to list documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": documents})
}

// Get re-opens a document, restoring its index when vectors are missing.
func (h *DocumentHandler) Get(c *gin.Context) {
	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	record, err := h.docs.Open(ctx, c.Param("id"))
	if err != nil {
		h.respondDocumentError(c, err, "Failed to open document")
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	if err := h.docs.Delete(ctx, c.Param("id")); err != nil {
		h.respondDocumentError(c, err, "Failed to delete document")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Search ranks the document's chunks against a query.
func (h *DocumentHandler) Search(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Query is required", err.Error())
		return
	}

	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	results, err := h.docs.Search(ctx, c.Param("id"), req.Query, req.Limit)
	if err != nil {
		h.respondDocumentError(c, err, "Search failed")
		return
	}
	if results == nil {
		results = []models.SimilarityResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Context returns the formatted retrieval context used to ground a chat answer.
func (h *DocumentHandler) Context(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Query is required", err.Error())
		return
	}

	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	c.JSON(http.StatusOK, gin.H{
		"context": h.docs.ContextForQuery(ctx, c.Param("id"), req.Query, req.Limit),
	})
}

func (h *DocumentHandler) Reindex(c *gin.Context) {
	if h.enqueuer == nil {
		utils.RespondWithServiceUnavailable(c, "queue_unavailable", "Background queue is not configured")
		return
	}

	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	documentID := c.Param("id")
	taskID, err := h.enqueuer.EnqueueReindex(ctx, documentID)
	if err != nil {
		logger.Error("Failed to enqueue reindex", "document_id", documentID, "error", err)
		utils.RespondWithServiceUnavailable(c, "queue_unavailable", "Failed to schedule re-indexing")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "document_id": documentID})
}

// Export streams the document's chunks and steps as an XLSX workbook.
func (h *DocumentHandler) Export(c *gin.Context) {
	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	record, err := h.docs.Open(ctx, c.Param("id"))
	if err != nil {
		h.respondDocumentError(c, err, "Failed to open document")
		return
	}

	data, err := services.ExportDocumentXLSX(record)
	if err != nil {
		logger.Error("Failed to export document", "document_id", record.DocumentID, "error", err)
		utils.RespondWithInternalError(c, "Failed to export document", nil)
		return
	}

	name := strings.TrimSuffix(record.FileName, filepath.Ext(record.FileName))
	if name == "" {
		name = record.DocumentID
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"-analysis.xlsx"))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *DocumentHandler) respondDocumentError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		utils.RespondWithNotFound(c, "Document not found")
	case errors.Is(err, services.ErrEmbeddingIndex):
		logger.Error(message, "document_id", c.Param("id"), "error", err)
		utils.RespondWithServiceUnavailable(c, "index_unavailable", message)
	default:
		logger.Error(message, "document_id", c.Param("id"), "error", err)
		utils.RespondWithInternalError(c, message, nil)
	}
}

// uploadMimeType prefers the part's declared type and falls back to the file
// extension when the client sent none or a generic one.
func uploadMimeType(declared, fileName string) string {
	mimeType := services.NormalizeMimeType(declared)
	if mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if byExt, ok := textExtensions[ext]; ok {
		return byExt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return services.NormalizeMimeType(byExt)
	}
	return mimeType
}
