package password

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(b byte) *rand.ChaCha8 {
	var seed [32]byte
	seed[0] = b
	return rand.NewChaCha8(seed)
}

func TestGenerateHasEveryCategory(t *testing.T) {
	for i := 0; i < 50; i++ {
		pw, err := Generate(8, DefaultCategories)
		require.NoError(t, err)
		require.Len(t, pw, 8)

		assert.True(t, strings.ContainsAny(pw, uppercaseLettersClear), pw)
		assert.True(t, strings.ContainsAny(pw, lowercaseLettersClear), pw)
		assert.True(t, strings.ContainsAny(pw, digitsClear), pw)
		assert.True(t, strings.ContainsAny(pw, symbols), pw)
		assert.False(t, strings.ContainsAny(pw, "Il1O0"), pw)
	}
}

func TestGenerateSingleCategory(t *testing.T) {
	pw, err := Generate(16, Categories{Digits: true})
	require.NoError(t, err)
	assert.Len(t, pw, 16)
	assert.Empty(t, strings.Trim(pw, digits))
}

func TestGenerateErrors(t *testing.T) {
	_, err := Generate(10, Categories{})
	assert.ErrorIs(t, err, ErrNoCategories)

	_, err = Generate(3, DefaultCategories)
	assert.ErrorIs(t, err, ErrNoCategories)
}

func TestGenerateFromIsDeterministic(t *testing.T) {
	a, err := GenerateFrom(seeded(1), 20, DefaultCategories)
	require.NoError(t, err)
	b, err := GenerateFrom(seeded(1), 20, DefaultCategories)
	require.NoError(t, err)
	c, err := GenerateFrom(seeded(2), 20, DefaultCategories)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestPassphrase(t *testing.T) {
	list, err := LoadWordList(strings.NewReader("cavalo\n\nbateria\n  grampo \ncorreto\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"cavalo", "bateria", "grampo", "correto"}, list)

	p, err := PassphraseFrom(seeded(3), list, PassphraseOptions{Words: 4, FullWords: true, Separator: "-"})
	require.NoError(t, err)
	words := strings.Split(p, "-")
	require.Len(t, words, 4)
	for _, w := range words {
		assert.Contains(t, list, w)
	}

	p, err = PassphraseFrom(seeded(3), list, PassphraseOptions{Words: 3, Separator: " ", Uppercase: true})
	require.NoError(t, err)
	words = strings.Split(p, " ")
	require.Len(t, words, 3)
	upper := 0
	for _, w := range words {
		assert.Len(t, []rune(w), 4)
		if w == strings.ToUpper(w) {
			upper++
		}
	}
	assert.Equal(t, 1, upper)
}

func TestPassphraseErrors(t *testing.T) {
	_, err := Passphrase([]string{"a"}, PassphraseOptions{})
	assert.Error(t, err)

	_, err = Passphrase(nil, PassphraseOptions{Words: 2})
	assert.Error(t, err)
}
