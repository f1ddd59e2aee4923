package repository

import (
	"github.com/ajgcsol/videopipeline/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VideoRepository interface {
	BaseRepository[models.Video]
	GetByAssetID(assetID string) (*models.Video, error)
	GetByStatus(status string, limit, offset int) ([]*models.Video, error)
	ListWithPagination(page, pageSize int32) ([]*models.Video, int64, error)
	CountByStatus(status string) (int64, error)
	UpdateStatus(id uuid.UUID, status string) error
}

type VideoRepositoryImpl struct {
	*BaseRepositoryImpl[models.Video]
}

func NewVideoRepository(db *gorm.DB) VideoRepository {
	return &VideoRepositoryImpl{
		BaseRepositoryImpl: NewBaseRepository[models.Video](db),
	}
}

func (r *VideoRepositoryImpl) GetByAssetID(assetID string) (*models.Video, error) {
	return r.firstWhere("asset_id = ?", assetID)
}

func (r *VideoRepositoryImpl) GetByStatus(status string, limit, offset int) ([]*models.Video, error) {
	return r.findWhere(limit, offset, "created_at DESC", "status = ?", status)
}

func (r *VideoRepositoryImpl) ListWithPagination(page, pageSize int32) ([]*models.Video, int64, error) {
	total, err := r.countWhere()
	if err != nil {
		return nil, 0, err
	}
	videos, err := r.findWhere(int(pageSize), int((page-1)*pageSize), "created_at DESC")
	if err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

func (r *VideoRepositoryImpl) CountByStatus(status string) (int64, error) {
	return r.countWhere("status = ?", status)
}

func (r *VideoRepositoryImpl) UpdateStatus(id uuid.UUID, status string) error {
	return r.db.Model(&models.Video{}).Where("id = ?", id).Update("status", status).Error
}
