package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"
)

// RED: Test admin endpoints require a token for the matching action
func TestAdminUsers_RequiresToken(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, "GET", "/admin/api/users", nil, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without token, got %d", rec.Code)
	}

	rec = s.do(t, "GET", "/admin/api/users", nil, s.admin(t, ActionDeleteUser))
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for wrong action, got %d", rec.Code)
	}
}

func TestAdminUsers_List(t *testing.T) {
	s := setupServer(t)
	s.register(t, "a@example.com", false)
	s.register(t, "b@example.com", true)

	rec := s.do(t, "GET", "/admin/api/users", nil, s.admin(t, ActionListUsers))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var raw []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(raw))
	}
	for _, u := range raw {
		for _, secret := range []string{"PasswordHash", "password_hash", "SecondFactorSecret", "second_factor_secret"} {
			if _, ok := u[secret]; ok {
				t.Errorf("User JSON must not expose %s", secret)
			}
		}
	}
}

func TestAdminUsers_GetAndDelete(t *testing.T) {
	s := setupServer(t)
	s.register(t, "b@example.com", true)

	rec := s.do(t, "GET", "/admin/api/users/B@example.com", nil, s.admin(t, ActionReadUser))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var user UserResponse
	json.NewDecoder(rec.Body).Decode(&user)
	if user.Email != "b@example.com" || user.RemainingBackupCodes != 5 {
		t.Errorf("Unexpected user %+v", user)
	}

	rec = s.do(t, "DELETE", "/admin/api/users/b@example.com", nil, s.admin(t, ActionDeleteUser))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var codes int64
	s.db.Model(&models.BackupCode{}).Count(&codes)
	if codes != 0 {
		t.Errorf("Expected backup codes to cascade, %d left", codes)
	}

	rec = s.do(t, "DELETE", "/admin/api/users/b@example.com", nil, s.admin(t, ActionDeleteUser))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for second delete, got %d", rec.Code)
	}

	rec = s.do(t, "GET", "/admin/api/users/b@example.com", nil, s.admin(t, ActionReadUser))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}
