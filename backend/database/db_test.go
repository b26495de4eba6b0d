package database_test

import (
	"path/filepath"
	"testing"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/database"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func secret(s string) *string { return &s }

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL", database.DSN("a.db"))
	assert.Contains(t, database.DSN("file:a.db?cache=shared"), "cache=shared&_foreign_keys=on")
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&models.User{Email: "a@example.com", PasswordHash: "h"}).Error)

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Migrate(db))

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.EqualValues(t, 1, n, "migrate must keep existing rows")

	for _, table := range []any{&models.User{}, &models.BackupCode{}, &models.LogEntry{}, &models.Contact{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
}

func TestResetEmptiesTables(t *testing.T) {
	db := testutil.NewDB(t)
	u := models.User{Email: "a@example.com", PasswordHash: "h", SecondFactorEnabled: true, SecondFactorSecret: secret("S")}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&models.BackupCode{UserID: u.ID, CodeHash: "c"}).Error)

	require.NoError(t, database.Reset(db))

	var users, codes int64
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.BackupCode{}).Count(&codes)
	assert.Zero(t, users)
	assert.Zero(t, codes)
}

func TestEmailIsUnique(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&models.User{Email: "a@example.com", PasswordHash: "h"}).Error)

	err := db.Create(&models.User{Email: "a@example.com", PasswordHash: "h2"}).Error
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.True(t, database.IsDuplicate(err))
	assert.False(t, database.IsDuplicate(nil))
}

func TestContactEmailIsUnique(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&models.Contact{Email: "a@example.com", Name: "A", Telephone: "1"}).Error)

	err := db.Create(&models.Contact{Email: "a@example.com", Name: "B", Telephone: "2"}).Error
	assert.True(t, database.IsDuplicate(err))
}

func TestDeleteUserCascadesToBackupCodes(t *testing.T) {
	db := testutil.NewDB(t)
	u := models.User{Email: "a@example.com", PasswordHash: "h", SecondFactorEnabled: true, SecondFactorSecret: secret("S")}
	other := models.User{Email: "b@example.com", PasswordHash: "h", SecondFactorEnabled: true, SecondFactorSecret: secret("S")}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, db.Create(&[]models.BackupCode{
		{UserID: u.ID, CodeHash: "1"},
		{UserID: u.ID, CodeHash: "2"},
		{UserID: other.ID, CodeHash: "3"},
	}).Error)

	require.NoError(t, db.Delete(&models.User{}, u.ID).Error)

	var codes []models.BackupCode
	require.NoError(t, db.Find(&codes).Error)
	require.Len(t, codes, 1)
	assert.Equal(t, other.ID, codes[0].UserID)
}

func TestBackupCodeRequiresUser(t *testing.T) {
	db := testutil.NewDB(t)

	err := db.Create(&models.BackupCode{UserID: 999, CodeHash: "x"}).Error
	assert.Error(t, err, "foreign keys must be enforced")
}

func TestSecondFactorConsistency(t *testing.T) {
	db := testutil.NewDB(t)

	err := db.Create(&models.User{Email: "a@example.com", PasswordHash: "h", SecondFactorEnabled: true}).Error
	assert.ErrorIs(t, err, models.ErrValidation)

	err = db.Create(&models.User{Email: "b@example.com", PasswordHash: "h", SecondFactorSecret: secret("S")}).Error
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestOpenPersistsAcrossConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	db, err := database.Open(path)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, db.Create(&models.User{Email: "a@example.com", PasswordHash: "h"}).Error)
	sqlDB, _ := db.DB()
	require.NoError(t, sqlDB.Close())

	db, err = database.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	var u models.User
	require.NoError(t, db.Where("email = ?", "a@example.com").Take(&u).Error)
	assert.Equal(t, "h", u.PasswordHash)
}
