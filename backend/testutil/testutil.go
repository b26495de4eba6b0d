// Package testutil builds throwaway databases and fast dependencies for
// tests.
package testutil

import (
	"encoding/binary"
	"io"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/database"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/password"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database in a temporary directory. It is
// closed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// CloseDB closes the pool behind db so later calls fail with a storage
// error.
func CloseDB(t testing.TB, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatal(err)
	}
}

// FastHasher is bcrypt at its minimum cost.
func FastHasher() password.Hasher {
	return &password.Bcrypt{Cost: bcrypt.MinCost}
}

// Reader returns a deterministic byte stream for seed.
func Reader(seed uint64) io.Reader {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:], seed)
	return rand.NewChaCha8(s)
}
