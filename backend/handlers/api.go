package handlers

import (
	"fmt"
	"net/http"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/credentials"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"
)

type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	SecondFactor bool   `json:"second_factor"`
}

type RegisterResponse struct {
	Email               string `json:"email"`
	SecondFactorEnabled bool   `json:"second_factor_enabled"`
	*credentials.RegistrationOutcome
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

type LoginResponse struct {
	Authenticated bool `json:"authenticated"`
}

type BackupCodesRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Count    int    `json:"count,omitempty"`
}

type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	outcome, err := h.store.Register(r.Context(), req.Email, req.Password, req.SecondFactor)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Email:               credentials.NormalizeEmail(req.Email),
		SecondFactorEnabled: outcome.Enabled(),
		RegistrationOutcome: outcome,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	ok, err := h.engine.Login(r.Context(), req.Email, req.Password, req.Code)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, LoginResponse{})
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Authenticated: true})
}

// BackupCodes issues a fresh batch after re-checking the password.
func (h *Handler) BackupCodes(w http.ResponseWriter, r *http.Request) {
	var req BackupCodesRequest
	if !decode(w, r, &req) {
		return
	}

	count := req.Count
	if count == 0 {
		count = h.BackupCodeCount
	}
	limit := max(h.MaxBackupCodes, h.BackupCodeCount)
	if count < 0 || count > limit {
		fail(w, r, fmt.Errorf("%w: count must be between 1 and %d", models.ErrValidation, limit))
		return
	}

	codes, err := h.engine.RegenerateBackupCodes(r.Context(), req.Email, req.Password, count)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}
