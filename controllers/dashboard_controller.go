package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"mailwarm/models"
	"mailwarm/utils"
)

type DashboardController struct {
	DB            *gorm.DB
	Logger        *logrus.Entry
	ActivityLimit int
}

func NewDashboardController(db *gorm.DB, logger *logrus.Entry, activityLimit int) *DashboardController {
	if activityLimit <= 0 {
		activityLimit = 10
	}
	return &DashboardController{
		DB:            db,
		Logger:        logger,
		ActivityLimit: activityLimit,
	}
}

type DashboardStats struct {
	TimeFrame      string                 `json:"time_frame"`
	TotalAccounts  int64                  `json:"total_accounts"`
	ActiveAccounts int64                  `json:"active_accounts"`
	Period         models.ActivitySummary `json:"period"`
	Today          models.ActivitySummary `json:"today"`
}

type TimeSeriesData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Label string  `json:"label"`
	Data  []int64 `json:"data"`
}

func timeFrameStart(frame string, now time.Time) (string, time.Time) {
	switch frame {
	case "day":
		return frame, now.Add(-24 * time.Hour)
	case "month":
		return frame, now.AddDate(0, 0, -30)
	default:
		return "week", now.AddDate(0, 0, -7)
	}
}

// GetDashboardStats returns summary statistics for the dashboard cards
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	profile, _, err := models.LoadSchedulingSettings(dc.DB, user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load settings", err)
	}

	now := time.Now()
	frame, start := timeFrameStart(c.Query("time_frame", "week"), now)

	stats := DashboardStats{TimeFrame: frame}
	if err := dc.DB.Model(&models.EmailAccount{}).Where("user_id = ?", user.ID).Count(&stats.TotalAccounts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count accounts", err)
	}
	if err := dc.DB.Model(&models.EmailAccount{}).Where("user_id = ? AND active = ?", user.ID, true).Count(&stats.ActiveAccounts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count accounts", err)
	}

	if stats.Period, err = models.SummarizeActivity(dc.DB, user.ID, start, now.Add(time.Second)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get activity stats", err)
	}

	local := now.In(profile.Location())
	y, m, d := local.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, local.Location())
	if stats.Today, err = models.SummarizeActivity(dc.DB, user.ID, dayStart, now.Add(time.Second)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get activity stats", err)
	}

	return c.JSON(stats)
}

// GetActivityOverTime returns per-day sent, received and error counts for the
// chart, in the owner's timezone.
func (dc *DashboardController) GetActivityOverTime(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	profile, _, err := models.LoadSchedulingSettings(dc.DB, user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load settings", err)
	}

	days := c.QueryInt("days", 14)
	if days < 1 || days > 90 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days must be between 1 and 90"})
	}

	loc := profile.Location()
	y, m, d := time.Now().In(loc).Date()
	first := time.Date(y, m, d-days+1, 0, 0, 0, 0, loc)

	data := TimeSeriesData{
		Datasets: []Dataset{
			{Label: "Sent", Data: make([]int64, days)},
			{Label: "Received", Data: make([]int64, days)},
			{Label: "Errors", Data: make([]int64, days)},
		},
	}
	for i := 0; i < days; i++ {
		start := first.AddDate(0, 0, i)
		data.Labels = append(data.Labels, start.Format("Jan 2"))

		summary, err := models.SummarizeActivity(dc.DB, user.ID, start, start.AddDate(0, 0, 1))
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get activity stats", err)
		}
		data.Datasets[0].Data[i] = summary.Sent
		data.Datasets[1].Data[i] = summary.Received
		data.Datasets[2].Data[i] = summary.Errors
	}

	return c.JSON(data)
}

// GetRecentActivity returns the newest activity events across the owner's accounts.
func (dc *DashboardController) GetRecentActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	limit := c.QueryInt("limit", dc.ActivityLimit)
	if limit < 1 {
		limit = dc.ActivityLimit
	}
	if limit > 100 {
		limit = 100
	}

	query := dc.DB.Where("user_id = ?", user.ID)
	if kind := c.Query("type"); kind != "" {
		query = query.Where("type = ?", kind)
	}

	var events []models.ActivityEvent
	if err := query.Preload("EmailAccount").
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get recent activity", err)
	}
	for i := range events {
		if events[i].EmailAccount != nil {
			events[i].EmailAccount.Sanitize()
		}
	}

	return c.JSON(fiber.Map{"data": events})
}
