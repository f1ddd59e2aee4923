package handler

import (
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ajgcsol/videopipeline/models"
	"github.com/ajgcsol/videopipeline/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PipelineHandler struct {
	sessions *service.SessionManager
	logger   *logrus.Logger
}

func NewPipelineHandler(sessions *service.SessionManager, logger *logrus.Logger) *PipelineHandler {
	return &PipelineHandler{sessions: sessions, logger: logger}
}

// UploadVideo starts a new pipeline session for an uploaded file
// POST /api/videos
func (h *PipelineHandler) UploadVideo(c *gin.Context) {
	title := c.PostForm("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.logger.Warnf("UploadVideo get file error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required", "detail": err.Error()})
		return
	}

	meta := models.VideoMetadata{
		Title:       title,
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		Tags:        splitTags(c.PostForm("tags")),
		Visibility:  c.DefaultPostForm("visibility", "private"),
		Filename:    header.Filename,
		SizeBytes:   header.Size,
	}

	h.logger.Infof("UploadVideo request: title=%s, filename=%s, size=%d", title, header.Filename, header.Size)

	// The multipart form's backing files belong to the request and are
	// removed when the handler returns, so the pipeline gets its own copy.
	payload, err := spoolUpload(file)
	file.Close()
	if err != nil {
		h.logger.Errorf("UploadVideo spool error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	orchestrator := h.sessions.CreateSession(
		func(result models.PipelineResult) {
			h.logger.Infof("Pipeline complete: record=%s asset=%s elapsed=%.1fs", result.RecordID, result.AssetID, result.ElapsedSeconds)
		},
		func(message string) {
			h.logger.Errorf("Pipeline failed: %s", message)
		},
	)

	if err := orchestrator.Start(payload, meta); err != nil {
		payload.Close()
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"session_id": orchestrator.ID().String()})
}

// spooledUpload is a session-owned temp copy of an uploaded file. Close
// removes it.
type spooledUpload struct {
	*os.File
}

func (s *spooledUpload) Close() error {
	err := s.File.Close()
	if rmErr := os.Remove(s.File.Name()); err == nil {
		err = rmErr
	}
	return err
}

func spoolUpload(src io.Reader) (io.ReadCloser, error) {
	spool, err := os.CreateTemp("", "videopipeline-upload-*")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(spool, src); err != nil {
		spool.Close()
		os.Remove(spool.Name())
		return nil, err
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		spool.Close()
		os.Remove(spool.Name())
		return nil, err
	}
	return &spooledUpload{File: spool}, nil
}

// GetSession returns the step list and aggregate progress
// GET /api/sessions/:id
func (h *PipelineHandler) GetSession(c *gin.Context) {
	orchestrator, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, orchestrator.Snapshot())
}

// ResetSession returns every step to pending
// POST /api/sessions/:id/reset
func (h *PipelineHandler) ResetSession(c *gin.Context) {
	orchestrator, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err := orchestrator.Reset(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orchestrator.Snapshot())
}

// CloseSession removes a finished or idle session
// DELETE /api/sessions/:id
func (h *PipelineHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		if err == service.ErrSessionRunning {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSpeakers returns the derived speaker list
// GET /api/sessions/:id/speakers
func (h *PipelineHandler) ListSpeakers(c *gin.Context) {
	orchestrator, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"speakers": orchestrator.Speakers()})
}

// RenameSpeaker updates one speaker's display name
// PUT /api/sessions/:id/speakers/:label
func (h *PipelineHandler) RenameSpeaker(c *gin.Context) {
	orchestrator, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := orchestrator.RenameSpeaker(c.Param("label"), body.Name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"speakers": orchestrator.Speakers()})
}

// AttachScreenshot stores a captured still frame on one speaker
// POST /api/sessions/:id/speakers/:label/screenshot
func (h *PipelineHandler) AttachScreenshot(c *gin.Context) {
	orchestrator, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	image, err := io.ReadAll(c.Request.Body)
	if err != nil || len(image) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "screenshot payload is required"})
		return
	}

	if err := orchestrator.AttachSpeakerScreenshot(c.Param("label"), image); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ConfirmSpeakers unblocks the identification step
// POST /api/sessions/:id/speakers/confirm
func (h *PipelineHandler) ConfirmSpeakers(c *gin.Context) {
	orchestrator, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err := orchestrator.ConfirmSpeakers(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

// SkipSpeakers declines identification and unblocks the step
// POST /api/sessions/:id/speakers/skip
func (h *PipelineHandler) SkipSpeakers(c *gin.Context) {
	orchestrator, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err := orchestrator.SkipSpeakerIdentification(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "skipped"})
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
