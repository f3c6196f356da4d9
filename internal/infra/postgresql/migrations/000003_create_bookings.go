package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/careops-engine/internal/repository"
	"gorm.io/gorm"
)

func createBookings() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_bookings",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BookingModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_bookings_status_date ON bookings (status, date)`,
				`CREATE INDEX IF NOT EXISTS idx_bookings_lead_id ON bookings (lead_id)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BookingModel{})
		},
	}
}
