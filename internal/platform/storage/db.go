package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nodeuser-server-go/internal/platform/errors"
)

// Open opens the SQLite database at the given DSN and runs all pending
// migrations. Parent directories are created for file-backed DSNs.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New(errors.KindStorage, "storage.open", "sqlite dsn is required")
	}

	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "storage.open", "create data directory", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "open sqlite database", err)
	}

	manager := NewMigrationManager(db)
	manager.AddMigration(&MigrationInitial{})
	if err := manager.RunMigrations(); err != nil {
		return nil, err
	}

	return db, nil
}

// Close releases the underlying sql.DB handle.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.close", "resolve sql handle", err)
	}
	return sqlDB.Close()
}
