package models

import "time"

// Contact is a phone book entry managed by admins. It lives in its own table
// and never touches credential users.
type Contact struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Telephone string    `json:"telephone" gorm:"not null"`
}
