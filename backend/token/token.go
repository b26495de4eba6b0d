// Package token issues and checks short-lived HS256 JWTs that authorize
// administrative actions.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification reasons.
const (
	ReasonMissingKey = "missing_key"
	ReasonExpired    = "expired"
	ReasonInvalid    = "invalid"
)

var (
	ErrMissingKey     = errors.New("token: signing key is required")
	ErrMissingSubject = errors.New("token: subject is required")
)

type Claims struct {
	Action    string            `json:"action,omitempty"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
	jwt.RegisteredClaims
}

// Verification is the outcome of Verify. Reason is set when Valid is false.
type Verification struct {
	Valid     bool              `json:"valid"`
	Reason    string            `json:"reason,omitempty"`
	Subject   string            `json:"sub,omitempty"`
	Action    string            `json:"action,omitempty"`
	ID        string            `json:"jti,omitempty"`
	Age       time.Duration     `json:"age,omitempty"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
}

type Manager struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewManager returns a Manager signing with key. A nil now means time.Now.
func NewManager(key []byte, issuer string, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{key: key, issuer: issuer, now: now}
}

// Issue signs a token for sub valid for ttl. action is stored lower-cased.
func (m *Manager) Issue(sub, action string, ttl time.Duration, extra map[string]string) (string, error) {
	if len(m.key) == 0 {
		return "", ErrMissingKey
	}
	if strings.TrimSpace(sub) == "" {
		return "", ErrMissingSubject
	}

	now := m.now()
	claims := Claims{
		Action:    strings.ToLower(action),
		ExtraData: extra,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sub,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Verify checks signature and time claims of raw. A "Bearer " prefix is
// accepted.
func (m *Manager) Verify(raw string) Verification {
	if len(m.key) == 0 {
		return Verification{Reason: ReasonMissingKey}
	}
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Verification{Reason: ReasonExpired}
	case err != nil:
		return Verification{Reason: ReasonInvalid}
	}

	v := Verification{
		Valid:     true,
		Subject:   claims.Subject,
		Action:    claims.Action,
		ID:        claims.ID,
		ExtraData: claims.ExtraData,
	}
	if claims.IssuedAt != nil {
		v.Age = m.now().Sub(claims.IssuedAt.Time)
	}
	return v
}

// Allows reports whether v is a valid admin token for action.
func (v Verification) Allows(action string) bool {
	return v.Valid && v.ExtraData["role"] == "admin" && v.Action == strings.ToLower(action)
}
