package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2idPrefix = "$argon2id$"

// Argon2Params are the argon2id cost parameters. Zero fields take the
// defaults below.
type Argon2Params struct {
	Memory      uint32 `yaml:"memory" toml:"memory"` // KiB
	Time        uint32 `yaml:"time" toml:"time"`
	Parallelism uint8  `yaml:"parallelism" toml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length" toml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length" toml:"key_length"`
}

func (p Argon2Params) withDefaults() Argon2Params {
	if p.Memory == 0 {
		p.Memory = 64 * 1024
	}
	if p.Time == 0 {
		p.Time = 3
	}
	if p.Parallelism == 0 {
		p.Parallelism = 2
	}
	if p.SaltLength == 0 {
		p.SaltLength = 16
	}
	if p.KeyLength == 0 {
		p.KeyLength = 32
	}
	return p
}

func (p Argon2Params) validate() error {
	p = p.withDefaults()
	if p.Memory < 8*1024 {
		return errors.New("argon2id memory must be at least 8192 KiB")
	}
	if p.SaltLength < 16 || p.KeyLength < 16 {
		return errors.New("argon2id salt and key must be at least 16 bytes")
	}
	return nil
}

// Argon2id produces PHC-formatted hashes:
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
type Argon2id struct {
	Params Argon2Params
}

func (a *Argon2id) Hash(plain string) (string, error) {
	p := a.Params.withDefaults()

	salt := make([]byte, p.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("argon2id salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)

	enc := base64.RawStdEncoding
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix, argon2.Version, p.Memory, p.Time, p.Parallelism,
		enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

func (a *Argon2id) Verify(hash, plain string) bool {
	p, salt, key, err := parseArgon2id(hash)
	if err != nil {
		return false
	}
	other := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1
}

func parseArgon2id(hash string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errors.New("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("argon2id parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("argon2id salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errors.New("argon2id key is malformed")
	}
	return p, salt, key, nil
}
