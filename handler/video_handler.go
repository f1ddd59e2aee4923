package handler

import (
	"net/http"
	"strconv"

	"github.com/ajgcsol/videopipeline/models"
	"github.com/ajgcsol/videopipeline/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type VideoHandler struct {
	videos      repository.VideoRepository
	speakerRepo repository.SpeakerRepository
	logger      *logrus.Logger
}

func NewVideoHandler(videos repository.VideoRepository, speakerRepo repository.SpeakerRepository, logger *logrus.Logger) *VideoHandler {
	return &VideoHandler{videos: videos, speakerRepo: speakerRepo, logger: logger}
}

// ListVideos returns persisted video records with pagination and an
// optional status filter
// GET /api/videos?page=1&page_size=20&status=published
func (h *VideoHandler) ListVideos(c *gin.Context) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 32)
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.ParseInt(c.DefaultQuery("page_size", "20"), 10, 32)
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var (
		videos []*models.Video
		total  int64
	)
	if status := c.Query("status"); status != "" {
		videos, err = h.videos.GetByStatus(status, int(pageSize), int((page-1)*pageSize))
		if err == nil {
			total, err = h.videos.CountByStatus(status)
		}
	} else {
		videos, total, err = h.videos.ListWithPagination(int32(page), int32(pageSize))
	}
	if err != nil {
		h.logger.Errorf("ListVideos error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list videos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"videos":    videos,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetVideo returns one persisted record with its confirmed speakers
// GET /api/videos/:id
func (h *VideoHandler) GetVideo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	video, err := h.videos.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	speakers, err := h.speakerRepo.GetByVideoID(id)
	if err != nil {
		h.logger.Warnf("GetVideo speakers lookup error: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"video":    video,
		"speakers": speakers,
	})
}

// GetVideoByAsset looks a record up by its transcoder asset reference
// GET /api/assets/:asset_id/video
func (h *VideoHandler) GetVideoByAsset(c *gin.Context) {
	video, err := h.videos.GetByAssetID(c.Param("asset_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}

// UpdateVideoStatus moves a record between processing and published
// PUT /api/videos/:id/status
func (h *VideoHandler) UpdateVideoStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	if body.Status != models.VideoStatusProcessing && body.Status != models.VideoStatusPublished {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + body.Status})
		return
	}

	if _, err := h.videos.GetByID(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}
	if err := h.videos.UpdateStatus(id, body.Status); err != nil {
		h.logger.Errorf("UpdateVideoStatus error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id.String(), "status": body.Status})
}

// DeleteVideo removes a record and its speaker rows
// DELETE /api/videos/:id
func (h *VideoHandler) DeleteVideo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}
	if _, err := h.videos.GetByID(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	if err := h.speakerRepo.DeleteByVideoID(id); err != nil {
		h.logger.Warnf("DeleteVideo speakers cleanup error: %v", err)
	}
	if err := h.videos.Delete(id); err != nil {
		h.logger.Errorf("DeleteVideo error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete video"})
		return
	}
	c.Status(http.StatusNoContent)
}
