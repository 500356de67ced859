package controller

const (
	ErrInvalidRequestBody        = "Invalid request body"
	ErrInvalidCredentials        = "Invalid email or password"
	ErrEmailRegistered           = "Email already registered"
	ErrTokenGeneration           = "Failed to generate tokens"
	ErrInternal                  = "internal server error"
	ErrInvalidAccountID          = "invalid email account ID"
	ErrAccountNotFound           = "email account not found"
	ErrAccountExists             = "this email address is already enrolled"
	ErrIncompleteAccount         = "SMTP and IMAP credentials are required before activating warmup"
	ErrEncryptionFailed          = "failed to encrypt credentials"
	ErrInvalidDate               = "date must be formatted as YYYY-MM-DD"
	ErrInvalidDays               = "days must be between 1 and 365"
	ErrInvalidSeed               = "seed must be an integer"
	ErrSettingsInvalid           = "warmup timing settings are invalid"
	ErrNameRequired              = "name is required"
	ErrNotificationEmailRequired = "a valid notification_email is required"
	ErrUserDisabled              = "account is disabled"
	ErrRefreshRejected           = "invalid or expired refresh token"
	ErrWrongPassword             = "current password is incorrect"
)
