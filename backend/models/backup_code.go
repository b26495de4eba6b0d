package models

import "time"

// BackupCode is one single-use recovery code. Only the hash is stored.
type BackupCode struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time  `json:"created_at"`
	UserID    uint       `json:"user_id" gorm:"not null;index"`
	CodeHash  string     `json:"-" gorm:"not null"`
	Used      bool       `json:"used" gorm:"not null;default:false"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}
