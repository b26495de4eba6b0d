package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID                  uint         `json:"id" gorm:"primaryKey"`
	CreatedAt           time.Time    `json:"created_at"`
	Email               string       `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash        string       `json:"-" gorm:"not null"` // adaptive hash, never serialize
	SecondFactorEnabled bool         `json:"second_factor_enabled" gorm:"not null;default:false"`
	SecondFactorSecret  *string      `json:"-"` // TOTP secret, never serialize
	BackupCodes         []BackupCode `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// BeforeSave keeps the secret present exactly when the second factor is on.
func (u *User) BeforeSave(tx *gorm.DB) error {
	hasSecret := u.SecondFactorSecret != nil && *u.SecondFactorSecret != ""
	if u.SecondFactorEnabled != hasSecret {
		return fmt.Errorf("%w: second factor secret must be set iff second factor is enabled", ErrValidation)
	}
	return nil
}
