package repository

import (
	"github.com/ajgcsol/videopipeline/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SpeakerRepository interface {
	BaseRepository[models.SpeakerRecord]
	GetByVideoID(videoID uuid.UUID) ([]*models.SpeakerRecord, error)
	CreateBatch(records []*models.SpeakerRecord) error
	DeleteByVideoID(videoID uuid.UUID) error
}

type SpeakerRepositoryImpl struct {
	*BaseRepositoryImpl[models.SpeakerRecord]
}

func NewSpeakerRepository(db *gorm.DB) SpeakerRepository {
	return &SpeakerRepositoryImpl{
		BaseRepositoryImpl: NewBaseRepository[models.SpeakerRecord](db),
	}
}

func (r *SpeakerRepositoryImpl) GetByVideoID(videoID uuid.UUID) ([]*models.SpeakerRecord, error) {
	return r.findWhere(-1, 0, "created_at ASC", "video_id = ?", videoID)
}

func (r *SpeakerRepositoryImpl) CreateBatch(records []*models.SpeakerRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.Create(&records).Error
}

func (r *SpeakerRepositoryImpl) DeleteByVideoID(videoID uuid.UUID) error {
	return r.db.Where("video_id = ?", videoID).Delete(&models.SpeakerRecord{}).Error
}
