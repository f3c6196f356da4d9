package migrations

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrateCreatesSchema(t *testing.T) {
	t.Parallel()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	// Re-running is a no-op once every migration is recorded.
	require.NoError(t, Migrate(db))

	for _, table := range []string{"businesses", "leads", "inventory_items", "services", "service_resources", "bookings", "messages"} {
		require.True(t, db.Migrator().HasTable(table), "table %s missing", table)
	}
	require.True(t, db.Migrator().HasIndex("bookings", "idx_bookings_status_date"))
	require.True(t, db.Migrator().HasIndex("messages", "idx_messages_lead_created"))
}
