package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/token"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func guarded(m *token.Manager, action string) http.HandlerFunc {
	return RequireToken(m, action)(func(w http.ResponseWriter, r *http.Request) {
		v, ok := Verification(r.Context())
		if !ok {
			http.Error(w, "no verification", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(v.Subject))
	})
}

func adminToken(t *testing.T, m *token.Manager, action string, ttl time.Duration, role string) string {
	t.Helper()
	tok, err := m.Issue("admin@example.com", action, ttl, map[string]string{"role": role})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// RED: Test that a request without a token is forbidden
func TestRequireToken_Missing(t *testing.T) {
	m := token.NewManager(testKey, "test", nil)
	req := httptest.NewRequest("GET", "/admin/api/users", nil)
	rec := httptest.NewRecorder()

	guarded(m, "list_users")(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["reason"] != token.ReasonInvalid {
		t.Errorf("Expected reason %q, got %q", token.ReasonInvalid, body["reason"])
	}
}

// RED: Test that a valid admin token for the action is accepted
func TestRequireToken_Allowed(t *testing.T) {
	m := token.NewManager(testKey, "test", nil)
	req := httptest.NewRequest("GET", "/admin/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, m, "list_users", time.Minute, "admin"))
	rec := httptest.NewRecorder()

	guarded(m, "list_users")(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "admin@example.com" {
		t.Errorf("Expected subject in context, got %q", rec.Body.String())
	}
}

func TestRequireToken_WrongAction(t *testing.T) {
	m := token.NewManager(testKey, "test", nil)
	req := httptest.NewRequest("DELETE", "/admin/api/logs", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, m, "list_users", time.Minute, "admin"))
	rec := httptest.NewRecorder()

	guarded(m, "delete_logs")(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
}

func TestRequireToken_NotAdmin(t *testing.T) {
	m := token.NewManager(testKey, "test", nil)
	req := httptest.NewRequest("GET", "/admin/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, m, "list_users", time.Minute, "user"))
	rec := httptest.NewRecorder()

	guarded(m, "list_users")(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
}

func TestRequireToken_Expired(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	issuer := token.NewManager(testKey, "test", func() time.Time { return issued })
	checker := token.NewManager(testKey, "test", func() time.Time { return issued.Add(time.Hour) })

	req := httptest.NewRequest("GET", "/admin/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, issuer, "list_users", time.Minute, "admin"))
	rec := httptest.NewRecorder()

	guarded(checker, "list_users")(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["reason"] != token.ReasonExpired {
		t.Errorf("Expected reason %q, got %q", token.ReasonExpired, body["reason"])
	}
}
