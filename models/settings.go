package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"mailwarm/warmup"
)

const DefaultTimezone = "UTC+00:00"

// UserSettings holds the owner's profile and report preferences
type UserSettings struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	Name     string `gorm:"not null" json:"name"`
	Timezone string `gorm:"not null;default:'UTC+00:00'" json:"timezone"`

	// EmailNotifications gates DailySummary and WeeklyReport
	EmailNotifications bool `gorm:"not null" json:"email_notifications"`
	DailySummary       bool `gorm:"not null" json:"daily_summary"`
	WeeklyReport       bool `gorm:"not null" json:"weekly_report"`
}

func (UserSettings) TableName() string {
	return "user_settings"
}

func DefaultUserSettings(userID uint) UserSettings {
	return UserSettings{
		UserID:             userID,
		Timezone:           DefaultTimezone,
		EmailNotifications: true,
		DailySummary:       true,
		WeeklyReport:       true,
	}
}

func (s UserSettings) WantsDailySummary() bool {
	return s.EmailNotifications && s.DailySummary
}

func (s UserSettings) WantsWeeklyReport() bool {
	return s.EmailNotifications && s.WeeklyReport
}

// Location resolves the stored offset label, falling back to UTC.
func (s UserSettings) Location() *time.Location {
	loc, err := warmup.ParseOffset(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ErrorEmailSettings controls which operational errors are mailed to the owner
type ErrorEmailSettings struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	NotificationEmail     string `gorm:"not null" json:"notification_email"`
	NotifyOnAuthError     bool   `gorm:"not null" json:"notify_on_auth_error"`
	NotifyOnSendError     bool   `gorm:"not null" json:"notify_on_send_error"`
	NotifyOnReceiveError  bool   `gorm:"not null" json:"notify_on_receive_error"`
	NotifyOnSpamDetection bool   `gorm:"not null" json:"notify_on_spam_detection"`
	NotifyOnBounce        bool   `gorm:"not null" json:"notify_on_bounce"`
}

func (ErrorEmailSettings) TableName() string {
	return "error_email_settings"
}

func DefaultErrorEmailSettings(userID uint) ErrorEmailSettings {
	return ErrorEmailSettings{
		UserID:                userID,
		NotifyOnAuthError:     true,
		NotifyOnSendError:     true,
		NotifyOnReceiveError:  true,
		NotifyOnSpamDetection: true,
		NotifyOnBounce:        true,
	}
}

func (s ErrorEmailSettings) Config() warmup.NotificationConfig {
	return warmup.NotificationConfig{
		NotificationEmail:     s.NotificationEmail,
		NotifyOnAuthError:     s.NotifyOnAuthError,
		NotifyOnSendError:     s.NotifyOnSendError,
		NotifyOnReceiveError:  s.NotifyOnReceiveError,
		NotifyOnSpamDetection: s.NotifyOnSpamDetection,
		NotifyOnBounce:        s.NotifyOnBounce,
	}
}

// WarmupTimingSettings is the owner's send interval, window, and ramp-up policy
type WarmupTimingSettings struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	MinIntervalMinutes int   `gorm:"not null" json:"min_interval_minutes"`
	MaxIntervalMinutes int   `gorm:"not null" json:"max_interval_minutes"`
	BusinessHoursOnly  bool  `gorm:"not null" json:"business_hours_only"`
	BusinessHoursStart int   `gorm:"not null" json:"business_hours_start"`
	BusinessHoursEnd   int   `gorm:"not null" json:"business_hours_end"`
	WorkDays           []int `gorm:"serializer:json;type:text" json:"work_days"` // 0 = Sunday

	InitialDailyLimit int    `gorm:"not null" json:"initial_daily_limit"`
	MaxDailyLimit     int    `gorm:"not null" json:"max_daily_limit"`
	RampUpDays        int    `gorm:"not null" json:"ramp_up_days"`
	RampUpType        string `gorm:"not null" json:"ramp_up_type"` // linear, exponential, logarithmic
}

func (WarmupTimingSettings) TableName() string {
	return "warmup_timing_settings"
}

func DefaultWarmupTimingSettings(userID uint) WarmupTimingSettings {
	s := WarmupTimingSettings{UserID: userID}
	s.Apply(warmup.DefaultTimingConfig())
	return s
}

func (s WarmupTimingSettings) Config() warmup.TimingConfig {
	return warmup.TimingConfig{
		MinIntervalMinutes: s.MinIntervalMinutes,
		MaxIntervalMinutes: s.MaxIntervalMinutes,
		BusinessHoursOnly:  s.BusinessHoursOnly,
		BusinessHoursStart: s.BusinessHoursStart,
		BusinessHoursEnd:   s.BusinessHoursEnd,
		WorkDays:           append([]int(nil), s.WorkDays...),
		InitialDailyLimit:  s.InitialDailyLimit,
		MaxDailyLimit:      s.MaxDailyLimit,
		RampUpDays:         s.RampUpDays,
		RampUpType:         warmup.RampType(s.RampUpType),
	}
}

// Apply copies a policy configuration onto the record.
func (s *WarmupTimingSettings) Apply(cfg warmup.TimingConfig) {
	s.MinIntervalMinutes = cfg.MinIntervalMinutes
	s.MaxIntervalMinutes = cfg.MaxIntervalMinutes
	s.BusinessHoursOnly = cfg.BusinessHoursOnly
	s.BusinessHoursStart = cfg.BusinessHoursStart
	s.BusinessHoursEnd = cfg.BusinessHoursEnd
	s.WorkDays = append([]int(nil), cfg.WorkDays...)
	s.InitialDailyLimit = cfg.InitialDailyLimit
	s.MaxDailyLimit = cfg.MaxDailyLimit
	s.RampUpDays = cfg.RampUpDays
	s.RampUpType = string(cfg.RampUpType)
}

// LoadSchedulingSettings returns the owner's profile and timing rows, or the
// defaults for whichever row has not been saved yet.
func LoadSchedulingSettings(db *gorm.DB, userID uint) (UserSettings, WarmupTimingSettings, error) {
	profile := DefaultUserSettings(userID)
	if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return profile, WarmupTimingSettings{}, err
	}
	timing := DefaultWarmupTimingSettings(userID)
	if err := db.Where("user_id = ?", userID).First(&timing).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return profile, timing, err
	}
	return profile, timing, nil
}
