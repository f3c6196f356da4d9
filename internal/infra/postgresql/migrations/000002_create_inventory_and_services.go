package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/careops-engine/internal/repository"
	"gorm.io/gorm"
)

func createInventoryAndServices() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_inventory_and_services",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&repository.InventoryItemModel{},
				&repository.ServiceModel{},
				&repository.ServiceResourceModel{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.ServiceResourceModel{},
				&repository.ServiceModel{},
				&repository.InventoryItemModel{},
			)
		},
	}
}
