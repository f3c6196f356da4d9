package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/careops-engine/internal/repository"
	"gorm.io/gorm"
)

func createBusinessesAndLeads() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_businesses_and_leads",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BusinessModel{}, &repository.LeadModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_leads_business_email ON leads (business_id, email)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.LeadModel{}, &repository.BusinessModel{})
		},
	}
}
