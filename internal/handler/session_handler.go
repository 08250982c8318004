package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invoicer/internal/report"
	"invoicer/internal/service"
	"invoicer/internal/session"
)

// SessionHandler handles batch upload, progress and result endpoints.
type SessionHandler struct {
	batchService service.BatchService
	now          func() time.Time
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(batchService service.BatchService) *SessionHandler {
	return &SessionHandler{batchService: batchService, now: time.Now}
}

// Process handles POST /api/process
func (h *SessionHandler) Process(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.batchService.StartUpload(c.Request.Context(), service.UploadInput{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// Progress handles GET /api/progress/:sessionId
func (h *SessionHandler) Progress(c *gin.Context) {
	sess, err := h.batchService.Status(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, sess)
}

// Download handles GET /api/download/:sessionId
func (h *SessionHandler) Download(c *gin.Context) {
	path, err := h.batchService.Archive(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	c.FileAttachment(path, session.ArchiveName)
}

// Cancel handles POST /api/cancel/:sessionId
func (h *SessionHandler) Cancel(c *gin.Context) {
	sess, err := h.batchService.Cancel(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"sessionId": sess.ID, "status": sess.Status, "message": "Processing cancelled"})
}

// Retry handles POST /api/retry/:sessionId
func (h *SessionHandler) Retry(c *gin.Context) {
	result, err := h.batchService.Retry(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// Report handles GET /api/report/:sessionId?format=csv|xlsx
func (h *SessionHandler) Report(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}

	sessionID := c.Param("sessionId")
	var buf bytes.Buffer
	if err := h.batchService.Report(c.Request.Context(), sessionID, format, &buf); err != nil {
		HandleError(c, err)
		return
	}

	filename := report.BuildFilename(sessionID, format, h.now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, report.ContentType(format), buf.Bytes())
}
