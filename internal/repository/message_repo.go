package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/careops-engine/internal/domain"
	"gorm.io/gorm"
)

type MessageRepository interface {
	// Create inserts a new message, assigning an id and timestamp when absent.
	Create(ctx context.Context, msg *domain.Message) error
	ListByLead(ctx context.Context, leadID string) ([]domain.Message, error)
}

type GormMessageRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormMessageRepo(db *gorm.DB) *GormMessageRepo {
	return &GormMessageRepo{db: db, now: time.Now}
}

func (r *GormMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	model := messageModelFromDomain(msg)
	if model == nil {
		return nil
	}
	if strings.TrimSpace(model.ID) == "" {
		model.ID = uuid.NewString()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = r.now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return storeError("create message", err)
	}
	*msg = *messageModelToDomain(model)
	return nil
}

func (r *GormMessageRepo) ListByLead(ctx context.Context, leadID string) ([]domain.Message, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, storeError("list messages", err)
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *messageModelToDomain(&models[i]))
	}
	return messages, nil
}
