package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns plaintext secrets into salted adaptive hashes.
//
// Hash output is self-describing (algorithm prefix plus parameters) so a
// Hasher can verify hashes produced under older settings.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// ErrTooLong is returned when the algorithm cannot take the whole input.
var ErrTooLong = errors.New("password too long for hash algorithm")

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Config selects the algorithm used for new hashes.
type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Params
}

// New returns a Hasher that hashes with cfg.Algorithm and verifies any
// supported algorithm by looking at the hash prefix.
func New(cfg Config) (Hasher, error) {
	b := &Bcrypt{Cost: cfg.BcryptCost}
	a := &Argon2id{Params: cfg.Argon2}

	switch strings.ToLower(cfg.Algorithm) {
	case "", AlgorithmBcrypt:
		if cfg.BcryptCost != 0 && (cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost) {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		return &adaptive{primary: b, bcrypt: b, argon2: a}, nil
	case AlgorithmArgon2id:
		if err := a.Params.validate(); err != nil {
			return nil, err
		}
		return &adaptive{primary: a, bcrypt: b, argon2: a}, nil
	default:
		return nil, fmt.Errorf("unknown password hash algorithm %q", cfg.Algorithm)
	}
}

type adaptive struct {
	primary Hasher
	bcrypt  *Bcrypt
	argon2  *Argon2id
}

func (h *adaptive) Hash(plain string) (string, error) {
	return h.primary.Hash(plain)
}

func (h *adaptive) Verify(hash, plain string) bool {
	switch {
	case strings.HasPrefix(hash, argon2idPrefix):
		return h.argon2.Verify(hash, plain)
	case strings.HasPrefix(hash, "$2"):
		return h.bcrypt.Verify(hash, plain)
	default:
		return false
	}
}

// Bcrypt hashes with golang.org/x/crypto/bcrypt. Zero Cost means
// bcrypt.DefaultCost.
type Bcrypt struct {
	Cost int
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrTooLong
	}
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hashed), nil
}

func (b *Bcrypt) Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
