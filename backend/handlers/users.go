package handlers

import (
	"log/slog"
	"net/http"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/middleware"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"
)

type UserResponse struct {
	models.User
	RemainingBackupCodes int64 `json:"remaining_backup_codes"`
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.FetchByEmail(r.Context(), r.PathValue("email"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if user == nil {
		fail(w, r, models.ErrNotFound)
		return
	}

	resp := UserResponse{User: *user}
	if user.SecondFactorEnabled {
		resp.RemainingBackupCodes, err = h.codes.Remaining(r.Context(), user.ID)
		if err != nil {
			fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	deleted, err := h.store.Delete(r.Context(), email)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !deleted {
		fail(w, r, models.ErrNotFound)
		return
	}

	if v, ok := middleware.Verification(r.Context()); ok {
		slog.Info("admin removed user", "source", "admin", "admin", v.Subject, "token_id", v.ID)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
