// Package handlers exposes registration, login and administration over a
// small JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/auth"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/backupcodes"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/credentials"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/middleware"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/token"

	"gorm.io/gorm"
)

// maxBody caps request bodies; every request here is a few short strings.
const maxBody = 64 << 10

// Admin token actions.
const (
	ActionListUsers  = "list_users"
	ActionReadUser   = "read_user"
	ActionDeleteUser = "delete_user"
	ActionReadLogs   = "read_logs"
	ActionDeleteLogs = "delete_logs"

	ActionCreateContact = "create"
	ActionUpdateContact = "update"
	ActionDeleteContact = "delete"
)

type Handler struct {
	db     *gorm.DB
	store  *credentials.Store
	engine *auth.Engine
	codes  *backupcodes.Manager

	// BackupCodeCount is used when a regeneration request gives no count.
	BackupCodeCount int
	// MaxBackupCodes caps the count of a single regeneration. BackupCodeCount
	// is always allowed.
	MaxBackupCodes int
}

func New(db *gorm.DB, store *credentials.Store, engine *auth.Engine, codes *backupcodes.Manager) *Handler {
	return &Handler{
		db:              db,
		store:           store,
		engine:          engine,
		codes:           codes,
		BackupCodeCount: backupcodes.DefaultCount,
		MaxBackupCodes:  50,
	}
}

// Routes registers every endpoint on mux. Admin endpoints require a token
// from tokens issued for their action.
func (h *Handler) Routes(mux *http.ServeMux, tokens *token.Manager) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /api/register", h.Register)
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/backup-codes", h.BackupCodes)

	guard := func(action string, next http.HandlerFunc) http.HandlerFunc {
		return middleware.RequireToken(tokens, action)(next)
	}
	mux.HandleFunc("GET /admin/api/users", guard(ActionListUsers, h.ListUsers))
	mux.HandleFunc("GET /admin/api/users/{email}", guard(ActionReadUser, h.GetUser))
	mux.HandleFunc("DELETE /admin/api/users/{email}", guard(ActionDeleteUser, h.DeleteUser))
	mux.HandleFunc("GET /admin/api/logs", guard(ActionReadLogs, h.GetLogs))
	mux.HandleFunc("GET /admin/api/logs/sources", guard(ActionReadLogs, h.GetLogSources))
	mux.HandleFunc("GET /admin/api/logs/timeline", guard(ActionReadLogs, h.GetLogTimeline))
	mux.HandleFunc("DELETE /admin/api/logs", guard(ActionDeleteLogs, h.DeleteLogs))

	mux.HandleFunc("GET /api/contacts", h.ListContacts)
	mux.HandleFunc("GET /api/contacts/{email}", h.GetContact)
	mux.HandleFunc("POST /api/contacts", guard(ActionCreateContact, h.CreateContact))
	mux.HandleFunc("PUT /api/contacts/{email}", guard(ActionUpdateContact, h.UpdateContact))
	mux.HandleFunc("DELETE /api/contacts/{email}", guard(ActionDeleteContact, h.DeleteContact))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrDuplicateUser), errors.Is(err, models.ErrNoSecondFactor),
		errors.Is(err, models.ErrDuplicateContact):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrContactNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Storage faults are logged and
// reported with a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "source", "http", "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		slog.Error("health check failed", "source", "http", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
