package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"

	"gorm.io/gorm"
)

// DBHandler writes every record as JSON to an io.Writer and stores it as a
// LogEntry row. The "source" and "user_id" attributes become columns; the
// rest go into Data as JSON.
type DBHandler struct {
	db          *gorm.DB
	level       slog.Leveler
	jsonHandler slog.Handler
	attrs       []slog.Attr
}

// NewDBHandler returns a handler writing to w (stdout when nil) for records
// at or above level (Info when nil).
func NewDBHandler(db *gorm.DB, w io.Writer, level slog.Leveler) *DBHandler {
	if w == nil {
		w = os.Stdout
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &DBHandler{
		db:          db,
		level:       level,
		jsonHandler: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
		attrs:       []slog.Attr{},
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}

func extractUserID(v slog.Value) uint {
	switch v.Kind() {
	case slog.KindInt64:
		return uint(v.Int64())
	case slog.KindUint64:
		return uint(v.Uint64())
	default:
		return 0
	}
}

func (h *DBHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *DBHandler) Handle(ctx context.Context, r slog.Record) error {
	// Write to stdout
	_ = h.jsonHandler.Handle(ctx, r)

	attrs := make(map[string]any)
	var source string
	var userID *uint

	collect := func(a slog.Attr) bool {
		switch a.Key {
		case "source":
			source = a.Value.String()
		case "user_id":
			id := extractUserID(a.Value.Resolve())
			if id > 0 {
				userID = &id
			}
		default:
			attrs[a.Key] = a.Value.Resolve().Any()
		}
		return true
	}

	// Handler-level attrs first so record attrs win
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	var data string
	if len(attrs) > 0 {
		b, _ := json.Marshal(attrs)
		data = string(b)
	}

	created := r.Time
	if created.IsZero() {
		created = time.Now()
	}
	entry := models.LogEntry{
		CreatedAt: created.UTC(),
		Level:     r.Level.String(),
		Message:   r.Message,
		Source:    source,
		UserID:    userID,
		Data:      data,
	}

	return h.db.WithContext(context.WithoutCancel(ctx)).Create(&entry).Error
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &DBHandler{
		db:          h.db,
		level:       h.level,
		jsonHandler: h.jsonHandler.WithAttrs(attrs),
		attrs:       newAttrs,
	}
}

func (h *DBHandler) WithGroup(name string) slog.Handler {
	return h
}

// CleanupOldLogs removes logs older than maxAge every interval until ctx is
// done.
func CleanupOldLogs(ctx context.Context, db *gorm.DB, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := PruneLogs(ctx, db, time.Now().Add(-maxAge)); err != nil {
				slog.Error("log cleanup failed", "source", "system", "error", err)
			}
		}
	}
}

// PruneLogs deletes entries created before cutoff and returns how many.
func PruneLogs(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&models.LogEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
