package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/sitedeck/internal/config"
	"github.com/sandeepkv93/sitedeck/internal/database"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/repository/sqlstore"
	"github.com/sandeepkv93/sitedeck/internal/repository/storetest"
)

// migratedSQLiteFile creates the schema with the gorm migrations and returns the file path.
func migratedSQLiteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlstore.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return path
}

func TestSQLStoreContractSQLite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		store, err := sqlstore.Open(context.Background(), config.DialectSQLite, migratedSQLiteFile(t), sqlstore.PoolOptions{})
		require.NoError(t, err)
		return store
	})
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), "oracle", "dsn", sqlstore.PoolOptions{})
	require.Error(t, err)
}

func TestStorePing(t *testing.T) {
	store, err := sqlstore.Open(context.Background(), config.DialectSQLite, migratedSQLiteFile(t), sqlstore.PoolOptions{MaxOpenConns: 4})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))
}
