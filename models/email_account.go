package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrIncompleteCredentials = errors.New("active email accounts require complete SMTP and IMAP credentials")

// EmailAccount is a mailbox enrolled in warmup. Unlike settings records it is
// hard-deleted, so it carries no DeletedAt column.
type EmailAccount struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint   `gorm:"not null;uniqueIndex:idx_email_accounts_owner_address" json:"user_id"`
	Email  string `gorm:"not null;uniqueIndex:idx_email_accounts_owner_address" json:"email"`

	// ========= SMTP Configuration =========
	SMTPHost     string `gorm:"not null" json:"smtp_host"`
	SMTPPort     int    `gorm:"not null" json:"smtp_port"`
	SMTPUsername string `gorm:"not null" json:"smtp_username"`
	SMTPPassword string `gorm:"not null" json:"-"` // Encrypted in application layer

	// ========= IMAP Configuration =========
	IMAPHost     string `gorm:"not null" json:"imap_host"`
	IMAPPort     int    `gorm:"not null" json:"imap_port"`
	IMAPUsername string `gorm:"not null" json:"imap_username"`
	IMAPPassword string `gorm:"not null" json:"-"` // Encrypted in application layer

	UseSSL bool `gorm:"not null" json:"use_ssl"`
	Active bool `gorm:"not null;index" json:"active"`

	// ========= Warmup Progress =========
	WarmupStartedAt *time.Time `json:"warmup_started_at"`
	LastError       *string    `json:"last_error"`
	LastErrorAt     *time.Time `json:"last_error_at"`
}

func (EmailAccount) TableName() string {
	return "email_accounts"
}

// HasCredentials reports whether every SMTP and IMAP field is filled in.
func (a *EmailAccount) HasCredentials() bool {
	return a.SMTPHost != "" && a.SMTPPort > 0 && a.SMTPUsername != "" && a.SMTPPassword != "" &&
		a.IMAPHost != "" && a.IMAPPort > 0 && a.IMAPUsername != "" && a.IMAPPassword != ""
}

func (a *EmailAccount) BeforeSave(tx *gorm.DB) error {
	if a.Active && !a.HasCredentials() {
		return ErrIncompleteCredentials
	}
	if a.Active && a.WarmupStartedAt == nil {
		now := time.Now().UTC()
		a.WarmupStartedAt = &now
	}
	return nil
}

// Sanitize clears the encrypted secrets before the account leaves the service.
func (a *EmailAccount) Sanitize() {
	a.SMTPPassword = ""
	a.IMAPPassword = ""
}
