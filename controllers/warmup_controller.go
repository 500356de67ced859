package controller

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"mailwarm/models"
	"mailwarm/utils"
	"mailwarm/warmup"
	"mailwarm/worker"
)

// WarmupController previews what the engine will do with the owner's
// current timing settings.
type WarmupController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewWarmupController(db *gorm.DB, logger *logrus.Entry) *WarmupController {
	return &WarmupController{
		DB:     db,
		Logger: logger,
	}
}

type PlanResponse struct {
	RampUpType        warmup.RampType `json:"ramp_up_type"`
	InitialDailyLimit int             `json:"initial_daily_limit"`
	MaxDailyLimit     int             `json:"max_daily_limit"`
	RampUpDays        int             `json:"ramp_up_days"`
	CurrentDay        *int            `json:"current_day,omitempty"`
	Limits            []int           `json:"limits"`
}

type ScheduleResponse struct {
	Date        string      `json:"date"`
	Timezone    string      `json:"timezone"`
	Day         int         `json:"day"`
	DailyLimit  int         `json:"daily_limit"`
	WorkDay     bool        `json:"work_day"`
	WindowStart time.Time   `json:"window_start"`
	WindowEnd   time.Time   `json:"window_end"`
	Sends       []time.Time `json:"sends"`
	Warning     string      `json:"warning,omitempty"`
}

// optionalAccount loads the account named by ?account_id=, if any. A nil
// account with a nil error means the parameter was absent.
func (wc *WarmupController) optionalAccount(c *fiber.Ctx, userID uint) (*models.EmailAccount, int, error) {
	raw := c.Query("account_id")
	if raw == "" {
		return nil, 0, nil
	}
	id, err := utils.ParseUint(raw)
	if err != nil {
		return nil, fiber.StatusBadRequest, errors.New(ErrInvalidAccountID)
	}
	var account models.EmailAccount
	if err := wc.DB.Where("id = ? AND user_id = ?", id, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.StatusNotFound, errors.New(ErrAccountNotFound)
		}
		wc.Logger.WithError(err).Error("Database error fetching email account")
		return nil, fiber.StatusInternalServerError, errors.New(ErrInternal)
	}
	return &account, 0, nil
}

const maxPlanDays = 365

// GetPlan returns the daily limits over the ramp.
func (wc *WarmupController) GetPlan(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	profile, timing, err := models.LoadSchedulingSettings(wc.DB, user.ID)
	if err != nil {
		wc.Logger.WithError(err).Error("Failed to load settings")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrInternal})
	}
	cfg := timing.Config()

	days := c.QueryInt("days", min(cfg.RampUpDays+1, maxPlanDays))
	if days < 1 || days > maxPlanDays {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidDays})
	}

	limits, err := warmup.Plan(days, cfg)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   ErrSettingsInvalid,
			"details": err.Error(),
		})
	}

	resp := PlanResponse{
		RampUpType:        cfg.RampUpType,
		InitialDailyLimit: cfg.InitialDailyLimit,
		MaxDailyLimit:     cfg.MaxDailyLimit,
		RampUpDays:        cfg.RampUpDays,
		Limits:            limits,
	}

	account, status, err := wc.optionalAccount(c, user.ID)
	if err != nil {
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	if account != nil {
		day := 0
		if account.WarmupStartedAt != nil {
			day = max(warmup.DaysBetween(*account.WarmupStartedAt, time.Now(), profile.Location()), 0)
		}
		resp.CurrentDay = &day
	}

	return c.JSON(resp)
}

// GetSchedule samples the send times for one date. With account_id it shows
// exactly what the engine will use for that account; otherwise ?day= picks a
// ramp day and ?seed= makes the sample reproducible.
func (wc *WarmupController) GetSchedule(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	profile, timing, err := models.LoadSchedulingSettings(wc.DB, user.ID)
	if err != nil {
		wc.Logger.WithError(err).Error("Failed to load settings")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrInternal})
	}
	loc := profile.Location()

	date := time.Now().In(loc)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidDate})
		}
		date = parsed.Add(12 * time.Hour)
	}

	account, status, err := wc.optionalAccount(c, user.ID)
	if err != nil {
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	var (
		day   int
		limit int
		sched warmup.Schedule
	)
	if account != nil {
		planned, err := worker.PlanDay(wc.DB, account, date)
		if err != nil {
			return wc.policyError(c, err)
		}
		day, limit, sched = planned.DayNumber, planned.Limit, planned.Schedule
	} else {
		cfg := timing.Config()
		day = max(c.QueryInt("day", 0), 0)
		if limit, err = warmup.DailyLimit(day, cfg); err != nil {
			return wc.policyError(c, err)
		}
		seed := time.Now().UnixNano()
		if raw := c.Query("seed"); raw != "" {
			if seed, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidSeed})
			}
		}
		if sched, err = warmup.Sample(warmup.RequestFor(cfg, limit, date), warmup.NewRand(seed)); err != nil {
			return wc.policyError(c, err)
		}
	}

	resp := ScheduleResponse{
		Date:        date.Format("2006-01-02"),
		Timezone:    profile.Timezone,
		Day:         day,
		DailyLimit:  limit,
		WorkDay:     sched.WorkDay,
		WindowStart: sched.WindowStart,
		WindowEnd:   sched.WindowEnd,
		Sends:       sched.Sends,
	}
	if resp.Sends == nil {
		resp.Sends = []time.Time{}
	}
	if warn := sched.Warning(); warn != nil {
		resp.Warning = warn.Error()
	}
	return c.JSON(resp)
}

func (wc *WarmupController) policyError(c *fiber.Ctx, err error) error {
	if errors.Is(err, warmup.ErrInvalidConfig) || errors.Is(err, warmup.ErrInvalidWindow) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   ErrSettingsInvalid,
			"details": err.Error(),
		})
	}
	wc.Logger.WithError(err).Error("Failed to plan schedule")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrInternal})
}
