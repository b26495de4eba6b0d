package models

import "errors"

// Domain errors. Callers match them with errors.Is; storage errors are
// wrapped separately and never mapped onto these.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSecondFactor     = errors.New("second factor not enabled")
	ErrDuplicateContact   = errors.New("contact already exists")
	ErrContactNotFound    = errors.New("contact not found")
)
