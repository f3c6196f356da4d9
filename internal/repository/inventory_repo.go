package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"gorm.io/gorm"
)

type InventoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.InventoryItem, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	// Decrement subtracts by from the stored quantity and returns the updated
	// item. The subtraction and the read happen in one transaction; the result
	// may be negative.
	Decrement(ctx context.Context, id string, by int) (*domain.InventoryItem, error)
}

type GormInventoryRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormInventoryRepo(db *gorm.DB) *GormInventoryRepo {
	return &GormInventoryRepo{db: db, now: time.Now}
}

func (r *GormInventoryRepo) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var model InventoryItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, storeError("get inventory item", err)
	}
	return inventoryItemModelToDomain(&model), nil
}

func (r *GormInventoryRepo) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&InventoryItemModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   quantity,
			"updated_at": r.now().UTC(),
		})
	if result.Error != nil {
		return storeError("update inventory quantity", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormInventoryRepo) Decrement(ctx context.Context, id string, by int) (*domain.InventoryItem, error) {
	var model InventoryItemModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&InventoryItemModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity - ?", by),
				"updated_at": r.now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&model, "id = ?", id).Error
	})
	if err != nil {
		return nil, storeError("decrement inventory", err)
	}
	return inventoryItemModelToDomain(&model), nil
}
