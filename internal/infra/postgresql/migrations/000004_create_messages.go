package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/careops-engine/internal/repository"
	"gorm.io/gorm"
)

func createMessages() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_messages",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.MessageModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_messages_lead_created ON messages (lead_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_business_id ON messages (business_id)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MessageModel{})
		},
	}
}
