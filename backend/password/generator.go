package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Character sets for password generation. The "clear" variants drop
// characters that are easy to misread (I, l, 1, O, 0).
const (
	uppercaseLetters      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	uppercaseLettersClear = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowercaseLetters      = "abcdefghijklmnopqrstuvwxyz"
	lowercaseLettersClear = "abcdefghjkmnpqrstuvwxyz"
	digits                = "0123456789"
	digitsClear           = "23456789"
	symbols               = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// Categories selects which character classes a generated password uses.
type Categories struct {
	Upper            bool
	Lower            bool
	Digits           bool
	Symbols          bool
	RemoveConfusable bool
}

// DefaultCategories enables every class and drops confusable characters.
var DefaultCategories = Categories{Upper: true, Lower: true, Digits: true, Symbols: true, RemoveConfusable: true}

// ErrNoCategories is returned when no character class is enabled or the
// length cannot hold one character of each enabled class.
var ErrNoCategories = errors.New("password: no usable character categories for requested length")

// sets returns the enabled character sets in a fixed order.
func (c Categories) sets() []string {
	pick := func(clear, full string) string {
		if c.RemoveConfusable {
			return clear
		}
		return full
	}

	var out []string
	for _, cat := range []struct {
		on  bool
		set string
	}{
		{c.Upper, pick(uppercaseLettersClear, uppercaseLetters)},
		{c.Lower, pick(lowercaseLettersClear, lowercaseLetters)},
		{c.Digits, pick(digitsClear, digits)},
		{c.Symbols, symbols},
	} {
		if cat.on {
			out = append(out, cat.set)
		}
	}
	return out
}

// Generate returns a random password of the given length with at least one
// character from each enabled category.
func Generate(length int, c Categories) (string, error) {
	return GenerateFrom(rand.Reader, length, c)
}

// GenerateFrom is Generate with an explicit random source.
func GenerateFrom(r io.Reader, length int, c Categories) (string, error) {
	sets := c.sets()
	if len(sets) == 0 || length < len(sets) {
		return "", ErrNoCategories
	}

	password := make([]byte, 0, length)
	all := ""
	for _, set := range sets {
		ch, err := randomChar(r, set)
		if err != nil {
			return "", err
		}
		password = append(password, ch)
		all += set
	}
	for len(password) < length {
		ch, err := randomChar(r, all)
		if err != nil {
			return "", err
		}
		password = append(password, ch)
	}

	// Shuffle so the guaranteed characters are not always up front
	if err := shuffleBytes(r, password); err != nil {
		return "", err
	}
	return string(password), nil
}

// randomIndex returns a uniform index in [0, n).
func randomIndex(r io.Reader, n int) (int, error) {
	i, err := rand.Int(r, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random source: %w", err)
	}
	return int(i.Int64()), nil
}

func randomChar(r io.Reader, s string) (byte, error) {
	i, err := randomIndex(r, len(s))
	if err != nil {
		return 0, err
	}
	return s[i], nil
}

func shuffleBytes(r io.Reader, b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randomIndex(r, i+1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
