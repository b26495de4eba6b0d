// Package backupcodes issues and redeems single-use recovery codes for
// users with a second factor.
package backupcodes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/models"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/password"

	"gorm.io/gorm"
)

// DefaultAlphabet has no 0/O or 1/I/L.
const DefaultAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	DefaultLength = 6
	DefaultCount  = 5
)

type Options struct {
	Length   int
	Alphabet string
	Rand     io.Reader // nil means crypto/rand.Reader
}

type Manager struct {
	db       *gorm.DB
	hasher   password.Hasher
	length   int
	alphabet []rune
	rand     io.Reader
}

func New(db *gorm.DB, hasher password.Hasher, opts Options) *Manager {
	m := &Manager{
		db:       db,
		hasher:   hasher,
		length:   opts.Length,
		alphabet: symbols(opts.Alphabet),
		rand:     opts.Rand,
	}
	if m.length <= 0 {
		m.length = DefaultLength
	}
	if len(m.alphabet) == 0 {
		m.alphabet = symbols(DefaultAlphabet)
	}
	if m.rand == nil {
		m.rand = rand.Reader
	}
	return m
}

// maxRedraws bounds how many duplicate draws NewBatch tolerates per code.
const maxRedraws = 64

// symbols returns the distinct runes of alphabet in order of appearance.
func symbols(alphabet string) []rune {
	seen := make(map[rune]bool)
	var out []rune
	for _, r := range alphabet {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// Fits reports whether alphabet and length allow at least count distinct
// codes.
func Fits(alphabet string, length, count int) bool {
	n := len(symbols(alphabet))
	if count <= 1 {
		return true
	}
	if n == 0 {
		return false
	}
	total := 1
	for range length {
		// total*n >= count without overflowing
		if total >= (count+n-1)/n {
			return true
		}
		total *= n
	}
	return false
}

// Batch is a set of freshly drawn codes and their hashes. Plain is what
// the user sees, once.
type Batch struct {
	Plain  []string
	hashes []string
}

// NewBatch draws and hashes count distinct codes. Nothing is stored.
func (m *Manager) NewBatch(count int) (*Batch, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: backup code count must be at least 1", models.ErrValidation)
	}
	if !Fits(string(m.alphabet), m.length, count) {
		return nil, fmt.Errorf("%w: %d backup codes of length %d do not fit an alphabet of %d symbols",
			models.ErrValidation, count, m.length, len(m.alphabet))
	}
	b := &Batch{
		Plain:  make([]string, 0, count),
		hashes: make([]string, 0, count),
	}
	seen := make(map[string]bool, count)
	redraws := 0
	for len(b.Plain) < count {
		code, err := m.draw()
		if err != nil {
			return nil, err
		}
		// Codes within a batch are pairwise distinct
		if seen[code] {
			redraws++
			if redraws > maxRedraws*count {
				return nil, fmt.Errorf("%w: could not draw %d distinct backup codes", models.ErrValidation, count)
			}
			continue
		}
		seen[code] = true
		hash, err := m.hasher.Hash(code)
		if err != nil {
			return nil, fmt.Errorf("hash backup code: %w", err)
		}
		b.Plain = append(b.Plain, code)
		b.hashes = append(b.hashes, hash)
	}
	return b, nil
}

// SaveBatch stores the batch as unused codes of userID using tx, which may
// be an open transaction.
func (m *Manager) SaveBatch(tx *gorm.DB, userID uint, b *Batch) error {
	rows := make([]models.BackupCode, len(b.hashes))
	for i, h := range b.hashes {
		rows[i] = models.BackupCode{UserID: userID, CodeHash: h}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("store backup codes: %w", err)
	}
	return nil
}

// Generate adds count new codes for userID and returns them in plaintext.
// Existing unused codes stay valid.
func (m *Manager) Generate(ctx context.Context, userID uint, count int) ([]string, error) {
	var user models.User
	err := m.db.WithContext(ctx).Select("id", "second_factor_enabled").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if !user.SecondFactorEnabled {
		return nil, models.ErrNoSecondFactor
	}

	b, err := m.NewBatch(count)
	if err != nil {
		return nil, err
	}
	if err := m.SaveBatch(m.db.WithContext(ctx), userID, b); err != nil {
		return nil, err
	}
	return b.Plain, nil
}

// Consume redeems candidate against the unused codes of userID. It reports
// true only to the one caller whose update flipped the row to used.
func (m *Manager) Consume(ctx context.Context, userID uint, candidate string) (bool, error) {
	candidate = Normalize(candidate)
	if candidate == "" {
		return false, nil
	}

	var unused []models.BackupCode
	err := m.db.WithContext(ctx).
		Where("user_id = ? AND used = ?", userID, false).
		Order("id").
		Find(&unused).Error
	if err != nil {
		return false, fmt.Errorf("load backup codes: %w", err)
	}

	for _, code := range unused {
		if !m.hasher.Verify(code.CodeHash, candidate) {
			continue
		}
		// Compare-and-set: only one concurrent caller can see RowsAffected == 1
		res := m.db.WithContext(ctx).
			Model(&models.BackupCode{}).
			Where("id = ? AND used = ?", code.ID, false).
			Updates(map[string]any{"used": true, "used_at": time.Now().UTC()})
		if res.Error != nil {
			return false, fmt.Errorf("mark backup code used: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return true, nil
		}
	}
	return false, nil
}

// Remaining counts the unused codes of userID.
func (m *Manager) Remaining(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).
		Model(&models.BackupCode{}).
		Where("user_id = ? AND used = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count backup codes: %w", err)
	}
	return n, nil
}

// Normalize trims and upper-cases user input so "  ab3kq7" matches "AB3KQ7".
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (m *Manager) draw() (string, error) {
	size := big.NewInt(int64(len(m.alphabet)))
	buf := make([]rune, m.length)
	for i := range buf {
		n, err := rand.Int(m.rand, size)
		if err != nil {
			return "", fmt.Errorf("draw backup code: %w", err)
		}
		buf[i] = m.alphabet[n.Int64()]
	}
	return string(buf), nil
}
