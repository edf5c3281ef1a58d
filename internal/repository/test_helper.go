package repository

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/nimasrn/paint-rewards/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entities lists every table owned by the repositories, in dependency order.
func Entities() []interface{} {
	return []interface{}{
		&AccountEntity{},
		&BatchEntity{},
		&CouponEntity{},
		&LedgerEntryEntity{},
		&DailyCounterEntity{},
		&PayoutTransactionEntity{},
		&OrderEntity{},
		&OrderItemEntity{},
	}
}

// SetupTestDB opens a private shared-cache sqlite database with the schema
// migrated. A single connection serializes transactions the way row locks do
// on postgres.
func SetupTestDB(t testing.TB) *pg.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Entities()...))

	return pg.New(db, db)
}
