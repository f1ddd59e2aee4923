package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseRepository is the CRUD surface shared by every stored model.
type BaseRepository[T any] interface {
	Create(entity *T) error
	GetByID(id uuid.UUID) (*T, error)
	Update(entity *T) error
	Delete(id uuid.UUID) error
	List(limit, offset int) ([]*T, error)
	Count() (int64, error)
}

type BaseRepositoryImpl[T any] struct {
	db *gorm.DB
}

func NewBaseRepository[T any](db *gorm.DB) *BaseRepositoryImpl[T] {
	return &BaseRepositoryImpl[T]{db: db}
}

func (r *BaseRepositoryImpl[T]) Create(entity *T) error {
	return r.db.Create(entity).Error
}

func (r *BaseRepositoryImpl[T]) GetByID(id uuid.UUID) (*T, error) {
	return r.firstWhere("id = ?", id)
}

func (r *BaseRepositoryImpl[T]) Update(entity *T) error {
	return r.db.Save(entity).Error
}

// Delete reports gorm.ErrRecordNotFound when no row matched, so callers can
// tell a missing record from a successful removal.
func (r *BaseRepositoryImpl[T]) Delete(id uuid.UUID) error {
	res := r.db.Delete(new(T), "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns newest records first.
func (r *BaseRepositoryImpl[T]) List(limit, offset int) ([]*T, error) {
	return r.findWhere(limit, offset, "created_at DESC")
}

func (r *BaseRepositoryImpl[T]) Count() (int64, error) {
	return r.countWhere()
}

func (r *BaseRepositoryImpl[T]) firstWhere(query string, args ...interface{}) (*T, error) {
	entity := new(T)
	if err := r.db.Where(query, args...).First(entity).Error; err != nil {
		return nil, err
	}
	return entity, nil
}

// findWhere pages through records matching an optional condition in the
// given order. A negative limit disables paging.
func (r *BaseRepositoryImpl[T]) findWhere(limit, offset int, order string, conds ...interface{}) ([]*T, error) {
	var entities []*T
	tx := r.db.Limit(limit).Offset(offset).Order(order)
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	err := tx.Find(&entities).Error
	return entities, err
}

func (r *BaseRepositoryImpl[T]) countWhere(conds ...interface{}) (int64, error) {
	var count int64
	tx := r.db.Model(new(T))
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	err := tx.Count(&count).Error
	return count, err
}
