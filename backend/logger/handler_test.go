package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBHandlerPersistsRecords(t *testing.T) {
	db := testutil.NewDB(t)
	u := models.User{Email: "a@example.com", PasswordHash: "h"}
	require.NoError(t, db.Create(&u).Error)

	var out bytes.Buffer
	log := slog.New(NewDBHandler(db, &out, slog.LevelInfo))

	log.Info("login succeeded", "source", "auth", "user_id", u.ID, "backup_code", true)
	log.Debug("below threshold", "source", "auth")

	var entries []models.LogEntry
	require.NoError(t, db.Preload("User").Find(&entries).Error)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "login succeeded", e.Message)
	assert.Equal(t, "auth", e.Source)
	require.NotNil(t, e.UserID)
	assert.Equal(t, u.ID, *e.UserID)
	require.NotNil(t, e.User)
	assert.Equal(t, "a@example.com", e.User.Email)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.Data), &data))
	assert.Equal(t, true, data["backup_code"])
	assert.NotContains(t, data, "source")

	// Same record on the writer, as JSON
	var line map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, "login succeeded", line["msg"])
}

func TestDBHandlerWithAttrs(t *testing.T) {
	db := testutil.NewDB(t)
	log := slog.New(NewDBHandler(db, &bytes.Buffer{}, nil)).With("source", "http")

	log.Warn("request failed", "path", "/api/login")

	var e models.LogEntry
	require.NoError(t, db.Take(&e).Error)
	assert.Equal(t, "WARN", e.Level)
	assert.Equal(t, "http", e.Source)
	assert.Nil(t, e.UserID)
	assert.JSONEq(t, `{"path":"/api/login"}`, e.Data)
}

func TestDeletingUserKeepsLogs(t *testing.T) {
	db := testutil.NewDB(t)
	u := models.User{Email: "a@example.com", PasswordHash: "h"}
	require.NoError(t, db.Create(&u).Error)

	slog.New(NewDBHandler(db, &bytes.Buffer{}, nil)).Info("hello", "user_id", u.ID)
	require.NoError(t, db.Delete(&u).Error)

	var e models.LogEntry
	require.NoError(t, db.Take(&e).Error)
	assert.Nil(t, e.UserID)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestPruneLogs(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.Create(&[]models.LogEntry{
		{CreatedAt: now.Add(-72 * time.Hour), Message: "old"},
		{CreatedAt: now.Add(-49 * time.Hour), Message: "older than retention"},
		{CreatedAt: now.Add(-time.Hour), Message: "recent"},
	}).Error)

	n, err := PruneLogs(context.Background(), db, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	var left []models.LogEntry
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "recent", left[0].Message)
}

func TestPruneLogsStorageError(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CloseDB(t, db)

	_, err := PruneLogs(context.Background(), db, time.Now())
	assert.Error(t, err)
}

func TestCleanupOldLogsStopsWithContext(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&models.LogEntry{CreatedAt: time.Now().UTC().Add(-time.Hour), Message: "old"}).Error)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		CleanupOldLogs(ctx, db, time.Minute, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		var n int64
		db.Model(&models.LogEntry{}).Count(&n)
		return n == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not stop after cancel")
	}
}
