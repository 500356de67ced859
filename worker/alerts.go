package worker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"mailwarm/models"
	"mailwarm/utils"
	"mailwarm/warmup"
)

// AlertSender delivers error notifications. *utils.Notifier satisfies it.
type AlertSender interface {
	SendErrorAlert(to string, kind warmup.ErrorKind, account, detail string) error
}

// Recorder persists activity events and routes failures to the owner's
// notification address. Repeated alerts for the same account and error kind
// are limited to one per alertInterval; zero disables the limit.
type Recorder struct {
	db     *gorm.DB
	alerts AlertSender
	logger *logrus.Entry
	now    func() time.Time

	alertInterval time.Duration
	mu            sync.Mutex
	limiters      map[string]*rate.Limiter
}

func NewRecorder(db *gorm.DB, alerts AlertSender, alertInterval time.Duration) *Recorder {
	return &Recorder{
		db:            db,
		alerts:        alerts,
		logger:        logrus.WithField("component", "recorder"),
		now:           time.Now,
		alertInterval: alertInterval,
		limiters:      make(map[string]*rate.Limiter),
	}
}

func (r *Recorder) Success(account *models.EmailAccount, activity, messageID, message string) error {
	event := models.ActivityEvent{
		UserID:         account.UserID,
		EmailAccountID: account.ID,
		Type:           activity,
		Status:         models.StatusSuccess,
		MessageID:      messageID,
		Message:        message,
		OccurredAt:     r.now().UTC(),
	}
	if err := r.db.Create(&event).Error; err != nil {
		return err
	}
	utils.ActivityRecorded.WithLabelValues(activity, "").Inc()
	return nil
}

// Failure stores an error event, remembers it on the account, and notifies
// the owner when their settings ask for this kind of error.
func (r *Recorder) Failure(account *models.EmailAccount, kind warmup.ErrorKind, cause error) {
	now := r.now().UTC()
	detail := cause.Error()

	event := models.ActivityEvent{
		UserID:         account.UserID,
		EmailAccountID: account.ID,
		Type:           models.ActivityError,
		Status:         models.StatusError,
		ErrorKind:      string(kind),
		Message:        detail,
		OccurredAt:     now,
	}
	if err := r.db.Create(&event).Error; err != nil {
		r.logger.WithError(err).WithField("account_id", account.ID).Error("Failed to store error event")
	} else {
		utils.ActivityRecorded.WithLabelValues(models.ActivityError, string(kind)).Inc()
	}

	if err := r.db.Model(&models.EmailAccount{}).Where("id = ?", account.ID).
		UpdateColumns(map[string]interface{}{
			"last_error":    detail,
			"last_error_at": now,
		}).Error; err != nil {
		r.logger.WithError(err).WithField("account_id", account.ID).Error("Failed to update account error")
	}

	r.notify(account, kind, detail)
}

// allowAlert reports whether an alert for this account and kind may go out now.
func (r *Recorder) allowAlert(accountID uint, kind warmup.ErrorKind) bool {
	if r.alertInterval <= 0 {
		return true
	}
	key := fmt.Sprintf("%d:%s", accountID, kind)

	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(r.alertInterval), 1)
		r.limiters[key] = limiter
	}
	return limiter.AllowN(r.now(), 1)
}

func (r *Recorder) notify(account *models.EmailAccount, kind warmup.ErrorKind, detail string) {
	settings := models.DefaultErrorEmailSettings(account.UserID)
	err := r.db.Where("user_id = ?", account.UserID).First(&settings).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.WithError(err).WithField("user_id", account.UserID).Error("Failed to load notification settings")
		return
	}

	decision := warmup.Route(kind, settings.Config())
	if !decision.Notify || r.alerts == nil {
		return
	}

	fields := map[string]interface{}{
		"user_id":    account.UserID,
		"account_id": account.ID,
		"error_kind": string(kind),
	}
	if !r.allowAlert(account.ID, kind) {
		utils.ErrorAlerts.WithLabelValues(string(kind), "throttled").Inc()
		r.logger.WithFields(fields).Debug("Alert suppressed, one was sent recently")
		return
	}
	if err := r.alerts.SendErrorAlert(decision.To, kind, account.Email, detail); err != nil {
		utils.ErrorAlerts.WithLabelValues(string(kind), "failed").Inc()
		utils.LogError("error_notification", err, fields)
		return
	}
	utils.ErrorAlerts.WithLabelValues(string(kind), "sent").Inc()
	utils.LogEvent("error_notification_sent", fields)
}
