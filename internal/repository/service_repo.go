package repository

import (
	"context"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"gorm.io/gorm"
)

type ServiceRepository interface {
	// GetByID loads the service with its resource links and their inventory items.
	GetByID(ctx context.Context, id string) (*domain.Service, error)
}

type GormServiceRepo struct {
	db *gorm.DB
}

func NewGormServiceRepo(db *gorm.DB) *GormServiceRepo {
	return &GormServiceRepo{db: db}
}

func (r *GormServiceRepo) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	var model ServiceModel
	err := r.db.WithContext(ctx).
		Preload("Resources", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id ASC")
		}).
		Preload("Resources.InventoryItem").
		First(&model, "id = ?", id).Error
	if err != nil {
		return nil, storeError("get service", err)
	}
	return serviceModelToDomain(&model), nil
}
