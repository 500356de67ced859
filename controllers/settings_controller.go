package controller

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"mailwarm/models"
	"mailwarm/utils"
	"mailwarm/warmup"
)

// Setup steps, in the order a new owner completes them.
const (
	StepAccount       = "account"
	StepNotifications = "notifications"
	StepTiming        = "timing"
	StepEmailAccounts = "email-accounts"
)

var setupOrder = []string{StepAccount, StepNotifications, StepTiming, StepEmailAccounts}

func stepAfter(step string) string {
	for i, s := range setupOrder {
		if s == step && i+1 < len(setupOrder) {
			return setupOrder[i+1]
		}
	}
	return ""
}

type SettingsController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewSettingsController(db *gorm.DB, logger *logrus.Entry) *SettingsController {
	return &SettingsController{
		DB:     db,
		Logger: logger,
	}
}

type AccountSettingsRequest struct {
	Name               *string `json:"name" validate:"omitempty,max=100"`
	Timezone           *string `json:"timezone" validate:"omitempty,utcoffset"`
	EmailNotifications *bool   `json:"email_notifications"`
	DailySummary       *bool   `json:"daily_summary"`
	WeeklyReport       *bool   `json:"weekly_report"`
}

type NotificationSettingsRequest struct {
	NotificationEmail     *string `json:"notification_email" validate:"omitempty,mailbox"`
	NotifyOnAuthError     *bool   `json:"notify_on_auth_error"`
	NotifyOnSendError     *bool   `json:"notify_on_send_error"`
	NotifyOnReceiveError  *bool   `json:"notify_on_receive_error"`
	NotifyOnSpamDetection *bool   `json:"notify_on_spam_detection"`
	NotifyOnBounce        *bool   `json:"notify_on_bounce"`
}

type TimingSettingsRequest struct {
	MinIntervalMinutes *int    `json:"min_interval_minutes" validate:"omitempty,min=1,max=1440"`
	MaxIntervalMinutes *int    `json:"max_interval_minutes" validate:"omitempty,min=1,max=1440"`
	BusinessHoursOnly  *bool   `json:"business_hours_only"`
	BusinessHoursStart *int    `json:"business_hours_start" validate:"omitempty,min=0,max=23"`
	BusinessHoursEnd   *int    `json:"business_hours_end" validate:"omitempty,min=0,max=23"`
	WorkDays           []int   `json:"work_days" validate:"omitempty,weekdays"`
	InitialDailyLimit  *int    `json:"initial_daily_limit" validate:"omitempty,min=1"`
	MaxDailyLimit      *int    `json:"max_daily_limit" validate:"omitempty,min=1"`
	RampUpDays         *int    `json:"ramp_up_days" validate:"omitempty,min=1,max=365"`
	RampUpType         *string `json:"ramp_up_type" validate:"omitempty,ramp"`
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// settingsResponse includes next_step only when the save created the row.
func settingsResponse(settings interface{}, created bool, step string) fiber.Map {
	resp := fiber.Map{
		"settings": settings,
		"exists":   true,
		"created":  created,
	}
	if created {
		resp["next_step"] = stepAfter(step)
	}
	return resp
}

// findOwned loads the caller's row into dst. found is false when none exists.
func (sc *SettingsController) findOwned(userID uint, dst interface{}) (bool, error) {
	err := sc.DB.Where("user_id = ?", userID).First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (sc *SettingsController) saveOwned(created bool, row interface{}) error {
	if created {
		return sc.DB.Create(row).Error
	}
	return sc.DB.Save(row).Error
}

func (sc *SettingsController) internalError(c *fiber.Ctx, op string, err error) error {
	sc.Logger.WithError(err).WithField("op", op).Error("Settings storage error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": ErrInternal,
	})
}

func (sc *SettingsController) GetAccountSettings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	settings := models.DefaultUserSettings(user.ID)
	found, err := sc.findOwned(user.ID, &settings)
	if err != nil {
		return sc.internalError(c, "get_account_settings", err)
	}
	return c.JSON(fiber.Map{"settings": settings, "exists": found})
}

func (sc *SettingsController) UpdateAccountSettings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req AccountSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidRequestBody})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	settings := models.DefaultUserSettings(user.ID)
	found, err := sc.findOwned(user.ID, &settings)
	if err != nil {
		return sc.internalError(c, "update_account_settings", err)
	}

	if req.Name != nil {
		settings.Name = utils.SanitizeText(*req.Name)
	}
	setIf(&settings.Timezone, req.Timezone)
	setIf(&settings.EmailNotifications, req.EmailNotifications)
	setIf(&settings.DailySummary, req.DailySummary)
	setIf(&settings.WeeklyReport, req.WeeklyReport)
	if settings.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrNameRequired})
	}

	if err := sc.saveOwned(!found, &settings); err != nil {
		return sc.internalError(c, "update_account_settings", err)
	}
	return c.JSON(settingsResponse(settings, !found, StepAccount))
}

func (sc *SettingsController) GetNotificationSettings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	settings := models.DefaultErrorEmailSettings(user.ID)
	found, err := sc.findOwned(user.ID, &settings)
	if err != nil {
		return sc.internalError(c, "get_notification_settings", err)
	}
	return c.JSON(fiber.Map{"settings": settings, "exists": found})
}

func (sc *SettingsController) UpdateNotificationSettings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req NotificationSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidRequestBody})
	}
	if req.NotificationEmail != nil {
		trimmed := strings.TrimSpace(*req.NotificationEmail)
		req.NotificationEmail = &trimmed
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	settings := models.DefaultErrorEmailSettings(user.ID)
	found, err := sc.findOwned(user.ID, &settings)
	if err != nil {
		return sc.internalError(c, "update_notification_settings", err)
	}

	setIf(&settings.NotificationEmail, req.NotificationEmail)
	setIf(&settings.NotifyOnAuthError, req.NotifyOnAuthError)
	setIf(&settings.NotifyOnSendError, req.NotifyOnSendError)
	setIf(&settings.NotifyOnReceiveError, req.NotifyOnReceiveError)
	setIf(&settings.NotifyOnSpamDetection, req.NotifyOnSpamDetection)
	setIf(&settings.NotifyOnBounce, req.NotifyOnBounce)
	if !warmup.ValidEmail(settings.NotificationEmail) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrNotificationEmailRequired})
	}

	if err := sc.saveOwned(!found, &settings); err != nil {
		return sc.internalError(c, "update_notification_settings", err)
	}
	return c.JSON(settingsResponse(settings, !found, StepNotifications))
}

func (sc *SettingsController) GetTimingSettings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	settings := models.DefaultWarmupTimingSettings(user.ID)
	found, err := sc.findOwned(user.ID, &settings)
	if err != nil {
		return sc.internalError(c, "get_timing_settings", err)
	}
	return c.JSON(fiber.Map{"settings": settings, "exists": found})
}

func (sc *SettingsController) UpdateTimingSettings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req TimingSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidRequestBody})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	settings := models.DefaultWarmupTimingSettings(user.ID)
	found, err := sc.findOwned(user.ID, &settings)
	if err != nil {
		return sc.internalError(c, "update_timing_settings", err)
	}

	cfg := settings.Config()
	setIf(&cfg.MinIntervalMinutes, req.MinIntervalMinutes)
	setIf(&cfg.MaxIntervalMinutes, req.MaxIntervalMinutes)
	setIf(&cfg.BusinessHoursOnly, req.BusinessHoursOnly)
	setIf(&cfg.BusinessHoursStart, req.BusinessHoursStart)
	setIf(&cfg.BusinessHoursEnd, req.BusinessHoursEnd)
	if req.WorkDays != nil {
		cfg.WorkDays = req.WorkDays
	}
	setIf(&cfg.InitialDailyLimit, req.InitialDailyLimit)
	setIf(&cfg.MaxDailyLimit, req.MaxDailyLimit)
	setIf(&cfg.RampUpDays, req.RampUpDays)
	if req.RampUpType != nil {
		cfg.RampUpType = warmup.RampType(*req.RampUpType)
	}

	if err := cfg.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   ErrSettingsInvalid,
			"details": err.Error(),
		})
	}

	settings.Apply(cfg)
	if err := sc.saveOwned(!found, &settings); err != nil {
		return sc.internalError(c, "update_timing_settings", err)
	}
	return c.JSON(settingsResponse(settings, !found, StepTiming))
}

type SetupStep struct {
	Step      string `json:"step"`
	Completed bool   `json:"completed"`
}

// GetSetupStatus reports which onboarding steps the owner has completed and
// where the setup flow should resume.
func (sc *SettingsController) GetSetupStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	tables := map[string]interface{}{
		StepAccount:       &models.UserSettings{},
		StepNotifications: &models.ErrorEmailSettings{},
		StepTiming:        &models.WarmupTimingSettings{},
		StepEmailAccounts: &models.EmailAccount{},
	}

	steps := make([]SetupStep, 0, len(setupOrder))
	next := ""
	for _, step := range setupOrder {
		var count int64
		if err := sc.DB.Model(tables[step]).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
			return sc.internalError(c, "setup_status", err)
		}
		done := count > 0
		if !done && next == "" {
			next = step
		}
		steps = append(steps, SetupStep{Step: step, Completed: done})
	}

	return c.JSON(fiber.Map{
		"steps":     steps,
		"next_step": next,
		"complete":  next == "",
	})
}
