package models

import (
	"gorm.io/gorm"
)

// User represents an authenticated owner. Every other table is scoped by user ID.
type User struct {
	gorm.Model

	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	// Bumped on logout or password change to invalidate issued tokens
	TokenVersion int `gorm:"default:0" json:"-"`

	// Relations
	EmailAccounts []EmailAccount `gorm:"foreignKey:UserID" json:"email_accounts,omitempty"`
	Settings      *UserSettings  `gorm:"foreignKey:UserID" json:"settings,omitempty"`
}
