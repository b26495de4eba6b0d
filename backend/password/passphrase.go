package password

import (
	"bufio"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

type PassphraseOptions struct {
	Words int
	// FullWords keeps whole words; otherwise only the first four letters.
	FullWords bool
	Separator string
	// Uppercase upper-cases one randomly chosen word.
	Uppercase bool
}

// LoadWordList reads one word per line, skipping blank lines.
func LoadWordList(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	return words, nil
}

// Passphrase joins opts.Words random entries from list.
func Passphrase(list []string, opts PassphraseOptions) (string, error) {
	return PassphraseFrom(rand.Reader, list, opts)
}

func PassphraseFrom(r io.Reader, list []string, opts PassphraseOptions) (string, error) {
	if opts.Words < 1 {
		return "", errors.New("passphrase needs at least one word")
	}
	if len(list) == 0 {
		return "", errors.New("passphrase word list is empty")
	}

	words := make([]string, opts.Words)
	for i := range words {
		idx, err := randomIndex(r, len(list))
		if err != nil {
			return "", err
		}
		w := list[idx]
		if !opts.FullWords && len([]rune(w)) > 4 {
			w = string([]rune(w)[:4])
		}
		words[i] = w
	}

	if opts.Uppercase {
		idx, err := randomIndex(r, len(words))
		if err != nil {
			return "", err
		}
		words[idx] = strings.ToUpper(words[idx])
	}
	return strings.Join(words, opts.Separator), nil
}
