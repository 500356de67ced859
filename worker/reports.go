package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"mailwarm/models"
	"mailwarm/utils"
)

// ReportSender mails a finished report. *utils.Notifier satisfies it.
type ReportSender interface {
	SendReport(to, subject, body string) error
}

// ReportScheduler mails daily summaries and weekly reports on cron schedules
// evaluated in UTC.
type ReportScheduler struct {
	db         *gorm.DB
	sender     ReportSender
	cron       *cron.Cron
	dailySpec  string
	weeklySpec string
	logger     *logrus.Entry
	now        func() time.Time
}

func NewReportScheduler(db *gorm.DB, sender ReportSender, dailySpec, weeklySpec string) *ReportScheduler {
	return &ReportScheduler{
		db:         db,
		sender:     sender,
		cron:       cron.New(cron.WithLocation(time.UTC)),
		dailySpec:  dailySpec,
		weeklySpec: weeklySpec,
		logger:     logrus.WithField("worker", "reports"),
		now:        time.Now,
	}
}

func (rs *ReportScheduler) Start() error {
	if _, err := rs.cron.AddFunc(rs.dailySpec, rs.SendDailySummaries); err != nil {
		return fmt.Errorf("error scheduling daily summary: %w", err)
	}
	if _, err := rs.cron.AddFunc(rs.weeklySpec, rs.SendWeeklyReports); err != nil {
		return fmt.Errorf("error scheduling weekly report: %w", err)
	}
	rs.cron.Start()
	rs.logger.Infof("Report scheduler started (daily %q, weekly %q)", rs.dailySpec, rs.weeklySpec)
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (rs *ReportScheduler) Stop() context.Context {
	rs.logger.Info("Report scheduler stopped")
	return rs.cron.Stop()
}

type reportRecipient struct {
	UserID uint
	Email  string
	Name   string
}

// recipients lists owners with a settings row whose effective toggle for the
// given column is on.
func (rs *ReportScheduler) recipients(column string) ([]reportRecipient, error) {
	var out []reportRecipient
	err := rs.db.Table("user_settings").
		Select("users.id AS user_id, users.email AS email, user_settings.name AS name").
		Joins("JOIN users ON users.id = user_settings.user_id AND users.deleted_at IS NULL").
		Where("user_settings.deleted_at IS NULL AND users.is_active = ?", true).
		Where("user_settings.email_notifications = ? AND user_settings."+column+" = ?", true, true).
		Scan(&out).Error
	return out, err
}

func (rs *ReportScheduler) SendDailySummaries() {
	end := rs.now().UTC().Truncate(24 * time.Hour)
	rs.send("daily_summary", "Daily warmup summary", end.AddDate(0, 0, -1), end)
}

func (rs *ReportScheduler) SendWeeklyReports() {
	end := rs.now().UTC().Truncate(24 * time.Hour)
	rs.send("weekly_report", "Weekly warmup report", end.AddDate(0, 0, -7), end)
}

func (rs *ReportScheduler) send(column, title string, since, until time.Time) {
	users, err := rs.recipients(column)
	if err != nil {
		rs.logger.WithError(err).Error("Failed to load report recipients")
		return
	}

	for _, u := range users {
		summary, err := models.SummarizeActivity(rs.db, u.UserID, since, until)
		if err != nil {
			rs.logger.WithError(err).WithField("user_id", u.UserID).Error("Failed to summarize activity")
			continue
		}
		var active int64
		if err := rs.db.Model(&models.EmailAccount{}).
			Where("user_id = ? AND active = ?", u.UserID, true).
			Count(&active).Error; err != nil {
			rs.logger.WithError(err).WithField("user_id", u.UserID).Error("Failed to count accounts")
			continue
		}

		body := renderReport(u.Name, title, since, until, active, summary)
		if err := rs.sender.SendReport(u.Email, title, body); err != nil {
			utils.ReportsDelivered.WithLabelValues(column, "failed").Inc()
			utils.LogError("report_delivery", err, map[string]interface{}{
				"user_id": u.UserID,
				"report":  column,
			})
			continue
		}
		utils.ReportsDelivered.WithLabelValues(column, "sent").Inc()
		utils.LogEvent("report_sent", map[string]interface{}{
			"user_id": u.UserID,
			"report":  column,
		})
	}
}

func renderReport(name, title string, since, until time.Time, active int64, s models.ActivitySummary) string {
	if name == "" {
		name = "there"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "%s for %s to %s (UTC)\n\n", title, since.Format("Jan 2"), until.Add(-time.Second).Format("Jan 2, 2006"))
	fmt.Fprintf(&b, "Active accounts: %d\n", active)
	fmt.Fprintf(&b, "Warmup emails sent: %d\n", s.Sent)
	fmt.Fprintf(&b, "Warmup emails received: %d\n", s.Received)
	fmt.Fprintf(&b, "Landed in spam: %d\n", s.Spam)
	fmt.Fprintf(&b, "Bounced: %d\n", s.Bounces)
	fmt.Fprintf(&b, "Other errors: %d\n", s.Errors-s.Spam-s.Bounces)
	fmt.Fprintf(&b, "Delivery rate: %.1f%%\n", s.DeliveryRate)
	return b.String()
}
