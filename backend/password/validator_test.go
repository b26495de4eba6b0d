package password

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		password string
		rule     string
	}{
		{"Ab1!", "Length"},
		{"abcdef1!", "Uppercase"},
		{"ABCDEF1!", "Lowercase"},
		{"Abcdefg!", "Digits"},
		{"Abcdefg1", "Symbols"},
	}
	for _, tt := range tests {
		err := Validate(tt.password, DefaultPolicy)
		var pe *PolicyError
		require.True(t, errors.As(err, &pe), tt.password)
		assert.Equal(t, tt.rule, pe.Rule, tt.password)
	}

	assert.NoError(t, Validate("Abcdef1!", DefaultPolicy))
	assert.NoError(t, Validate("abc", Policy{}))
}
