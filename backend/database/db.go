package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// connParams are applied to every pooled connection by the sqlite driver.
// Foreign keys must be on per connection or cascades silently stop working.
const connParams = "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"

// Open opens the SQLite database at path. It does not touch the schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return db, nil
}

// DSN appends the connection parameters to path.
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + connParams
}

// Migrate creates missing tables, columns and indexes. Existing data is kept,
// so it is safe to call on every start.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.BackupCode{}, &models.LogEntry{}, &models.Contact{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Reset drops every table and recreates the schema.
//
// All data is lost. Only meant for tests and throwaway bootstrap databases.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&models.LogEntry{}, &models.BackupCode{}, &models.User{}, &models.Contact{}); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return Migrate(db)
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
