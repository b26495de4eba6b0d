// Package totp issues and checks time-based one-time codes (RFC 6238)
// compatible with common authenticator apps.
package totp

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// MinSecretSize is the smallest secret accepted, in bytes (160 bits).
const MinSecretSize = 20

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Options configure code generation and verification. Zero Period, Digits
// and SecretSize take the authenticator-app defaults; Skew is used as given.
type Options struct {
	Period     uint
	Skew       uint
	Digits     otp.Digits
	Algorithm  otp.Algorithm
	SecretSize uint
}

// DefaultOptions accept the current 30 s step and one step either side.
var DefaultOptions = Options{
	Period:     30,
	Skew:       1,
	Digits:     otp.DigitsSix,
	Algorithm:  otp.AlgorithmSHA1,
	SecretSize: MinSecretSize,
}

func (o Options) withDefaults() Options {
	if o.Period == 0 {
		o.Period = 30
	}
	if o.Digits == 0 {
		o.Digits = otp.DigitsSix
	}
	if o.SecretSize < MinSecretSize {
		o.SecretSize = MinSecretSize
	}
	return o
}

// Issuer creates per-user secrets and verifies codes against them.
type Issuer struct {
	opts Options
	rand io.Reader
}

// NewIssuer returns an Issuer reading randomness from r. A nil r means
// crypto/rand.Reader.
func NewIssuer(r io.Reader, opts Options) *Issuer {
	if r == nil {
		r = rand.Reader
	}
	return &Issuer{opts: opts.withDefaults(), rand: r}
}

// IssueSecret returns a fresh base32 (unpadded) secret.
func (i *Issuer) IssueSecret() (string, error) {
	raw := make([]byte, i.opts.SecretSize)
	if _, err := io.ReadFull(i.rand, raw); err != nil {
		return "", fmt.Errorf("read totp secret: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// Key builds the otp.Key for an existing secret. The key renders both the
// provisioning URI and a QR image.
func (i *Issuer) Key(secret, accountLabel, issuerLabel string) (*otp.Key, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return nil, err
	}
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuerLabel,
		AccountName: accountLabel,
		Period:      i.opts.Period,
		SecretSize:  uint(len(raw)),
		Secret:      raw,
		Digits:      i.opts.Digits,
		Algorithm:   i.opts.Algorithm,
		Rand:        i.rand,
	})
}

// ProvisioningURI returns the otpauth:// URI for secret.
func (i *Issuer) ProvisioningURI(secret, accountLabel, issuerLabel string) (string, error) {
	key, err := i.Key(secret, accountLabel, issuerLabel)
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// Verify reports whether candidate is the code for now, or for one of the
// Skew steps on either side of it.
func (i *Issuer) Verify(secret, candidate string, now time.Time) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(candidate, secret, now.UTC(), i.validateOpts())
	return err == nil && ok
}

// Code returns the expected code for secret at t.
func (i *Issuer) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), i.validateOpts())
}

func (i *Issuer) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    i.opts.Period,
		Skew:      i.opts.Skew,
		Digits:    i.opts.Digits,
		Algorithm: i.opts.Algorithm,
	}
}

func decodeSecret(secret string) ([]byte, error) {
	raw, err := b32.DecodeString(strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "=")))
	if err != nil {
		return nil, fmt.Errorf("decode totp secret: %w", err)
	}
	return raw, nil
}
