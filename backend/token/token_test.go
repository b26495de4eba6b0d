package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = []byte("0123456789abcdef0123456789abcdef")

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestIssueAndVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewManager(key, "sd-2025", clock(now))

	raw, err := m.Issue("admin@example.com", "List_Users", 5*time.Minute, map[string]string{"role": "admin"})
	require.NoError(t, err)

	later := NewManager(key, "sd-2025", clock(now.Add(time.Minute)))
	v := later.Verify("Bearer " + raw)
	require.True(t, v.Valid, v.Reason)
	assert.Equal(t, "admin@example.com", v.Subject)
	assert.Equal(t, "list_users", v.Action)
	assert.Equal(t, time.Minute, v.Age)
	assert.Equal(t, "admin", v.ExtraData["role"])
	_, err = uuid.Parse(v.ID)
	assert.NoError(t, err, "jti must be a uuid")

	assert.True(t, v.Allows("LIST_USERS"))
	assert.False(t, v.Allows("delete_user"))
}

func TestIssueErrors(t *testing.T) {
	_, err := NewManager(nil, "", nil).Issue("a", "x", time.Minute, nil)
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = NewManager(key, "", nil).Issue("  ", "x", time.Minute, nil)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestVerifyReasons(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewManager(key, "sd-2025", clock(now))
	raw, err := m.Issue("admin@example.com", "read_logs", time.Minute, nil)
	require.NoError(t, err)

	assert.Equal(t, ReasonMissingKey, NewManager(nil, "", nil).Verify(raw).Reason)
	assert.Equal(t, ReasonExpired, NewManager(key, "sd-2025", clock(now.Add(time.Hour))).Verify(raw).Reason)
	assert.Equal(t, ReasonInvalid, NewManager([]byte(strings.Repeat("z", 32)), "", clock(now)).Verify(raw).Reason)
	assert.Equal(t, ReasonInvalid, m.Verify("garbage").Reason)
	assert.Equal(t, ReasonInvalid, m.Verify("").Reason)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewManager(key, "sd-2025", clock(now))

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "admin@example.com",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(key)
	require.NoError(t, err)

	assert.Equal(t, ReasonInvalid, m.Verify(raw).Reason)
}

func TestAllowsRequiresAdminRole(t *testing.T) {
	v := Verification{Valid: true, Action: "read_logs", ExtraData: map[string]string{"role": "user"}}
	assert.False(t, v.Allows("read_logs"))

	v.ExtraData["role"] = "admin"
	assert.True(t, v.Allows("read_logs"))

	v.Valid = false
	assert.False(t, v.Allows("read_logs"))
}
