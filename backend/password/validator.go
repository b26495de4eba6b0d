package password

import (
	"fmt"
	"unicode"
)

// Policy describes the complexity a password has to meet.
type Policy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigits    bool
	RequireSymbols   bool
}

// DefaultPolicy asks for 8 characters and every character class.
var DefaultPolicy = Policy{MinLength: 8, RequireUppercase: true, RequireLowercase: true, RequireDigits: true, RequireSymbols: true}

// PolicyError names the first rule a password broke.
type PolicyError struct {
	Rule    string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

// Validate checks password against p and returns a *PolicyError for the
// first failed rule.
func Validate(password string, p Policy) error {
	if len([]rune(password)) < p.MinLength {
		return &PolicyError{
			Rule:    "Length",
			Message: fmt.Sprintf("Password must be at least %d characters long", p.MinLength),
		}
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		case !unicode.IsLetter(char) && !unicode.IsSpace(char):
			hasSymbol = true
		}
	}

	switch {
	case p.RequireUppercase && !hasUpper:
		return &PolicyError{Rule: "Uppercase", Message: "Password must contain at least one uppercase letter"}
	case p.RequireLowercase && !hasLower:
		return &PolicyError{Rule: "Lowercase", Message: "Password must contain at least one lowercase letter"}
	case p.RequireDigits && !hasDigit:
		return &PolicyError{Rule: "Digits", Message: "Password must contain at least one digit"}
	case p.RequireSymbols && !hasSymbol:
		return &PolicyError{Rule: "Symbols", Message: "Password must contain at least one symbol"}
	}
	return nil
}
