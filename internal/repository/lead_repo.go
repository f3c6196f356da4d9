package repository

import (
	"context"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"gorm.io/gorm"
)

type LeadRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
}

type GormLeadRepo struct {
	db *gorm.DB
}

func NewGormLeadRepo(db *gorm.DB) *GormLeadRepo {
	return &GormLeadRepo{db: db}
}

func (r *GormLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var model LeadModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, storeError("get lead", err)
	}
	return leadModelToDomain(&model), nil
}
