package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/credentials"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/database"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/middleware"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"

	"gorm.io/gorm"
)

type ContactRequest struct {
	Email     string `json:"email,omitempty"`
	Name      string `json:"name"`
	Telephone string `json:"telephone"`
}

func (c ContactRequest) validate(needEmail bool) error {
	if needEmail && !strings.Contains(c.Email, "@") {
		return fmt.Errorf("%w: email is required", models.ErrValidation)
	}
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Telephone) == "" {
		return fmt.Errorf("%w: name and telephone are required", models.ErrValidation)
	}
	return nil
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts := []models.Contact{}
	if err := h.db.WithContext(r.Context()).Order("email").Find(&contacts).Error; err != nil {
		fail(w, r, fmt.Errorf("list contacts: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	var c models.Contact
	err := h.db.WithContext(r.Context()).
		Where("email = ?", credentials.NormalizeEmail(r.PathValue("email"))).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(w, r, models.ErrContactNotFound)
		return
	}
	if err != nil {
		fail(w, r, fmt.Errorf("load contact: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !decode(w, r, &req) {
		return
	}
	req.Email = credentials.NormalizeEmail(req.Email)
	if err := req.validate(true); err != nil {
		fail(w, r, err)
		return
	}

	c := models.Contact{
		Email:     req.Email,
		Name:      strings.TrimSpace(req.Name),
		Telephone: strings.TrimSpace(req.Telephone),
	}
	err := h.db.WithContext(r.Context()).Create(&c).Error
	if database.IsDuplicate(err) {
		fail(w, r, models.ErrDuplicateContact)
		return
	}
	if err != nil {
		fail(w, r, fmt.Errorf("create contact: %w", err))
		return
	}

	logAdmin(r, "contact created", c.Email)
	writeJSON(w, http.StatusCreated, c)
}

// UpdateContact replaces name and telephone. The email is the key and
// cannot change.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !decode(w, r, &req) {
		return
	}
	email := credentials.NormalizeEmail(r.PathValue("email"))
	if req.Email != "" && credentials.NormalizeEmail(req.Email) != email {
		fail(w, r, fmt.Errorf("%w: email cannot be changed", models.ErrValidation))
		return
	}
	if err := req.validate(false); err != nil {
		fail(w, r, err)
		return
	}

	res := h.db.WithContext(r.Context()).
		Model(&models.Contact{}).
		Where("email = ?", email).
		Updates(map[string]any{
			"name":      strings.TrimSpace(req.Name),
			"telephone": strings.TrimSpace(req.Telephone),
		})
	if res.Error != nil {
		fail(w, r, fmt.Errorf("update contact: %w", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		fail(w, r, models.ErrContactNotFound)
		return
	}

	logAdmin(r, "contact updated", email)
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	email := credentials.NormalizeEmail(r.PathValue("email"))
	res := h.db.WithContext(r.Context()).Where("email = ?", email).Delete(&models.Contact{})
	if res.Error != nil {
		fail(w, r, fmt.Errorf("delete contact: %w", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		fail(w, r, models.ErrContactNotFound)
		return
	}

	logAdmin(r, "contact deleted", email)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func logAdmin(r *http.Request, msg, email string) {
	if v, ok := middleware.Verification(r.Context()); ok {
		slog.Info(msg, "source", "admin", "admin", v.Subject, "token_id", v.ID, "contact", email)
	}
}
