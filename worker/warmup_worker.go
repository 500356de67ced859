package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"mailwarm/config"
	"mailwarm/models"
	"mailwarm/warmup"
)

// Mailer sends one warmup message. *utils.WarmupMailer satisfies it.
type Mailer interface {
	SendWarmupEmail(ctx context.Context, account *models.EmailAccount, to string) (string, error)
}

// WarmupWorker walks active accounts on a ticker and sends whatever part of
// today's sampled schedule has come due and not yet been sent.
type WarmupWorker struct {
	DB       *gorm.DB
	Mailer   Mailer
	Recorder *Recorder
	Locker   Locker
	Logger   *logrus.Entry

	cfg config.WorkerConfig
	now func() time.Time
}

func NewWarmupWorker(db *gorm.DB, mailer Mailer, recorder *Recorder, locker Locker, cfg config.WorkerConfig) *WarmupWorker {
	return &WarmupWorker{
		DB:       db,
		Mailer:   mailer,
		Recorder: recorder,
		Locker:   locker,
		Logger:   logrus.WithField("worker", "warmup"),
		cfg:      cfg,
		now:      time.Now,
	}
}

func (ww *WarmupWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	select {
	case <-ctx.Done():
		return
	case <-time.After(ww.cfg.StartupDelay):
	}

	ww.Logger.Info("Warmup worker started")

	ticker := time.NewTicker(ww.cfg.WarmupTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ww.Logger.Info("Warmup worker shutting down...")
			return
		case <-ticker.C:
			ww.RunOnce(ctx)
		}
	}
}

// RunOnce processes every active account a single time.
func (ww *WarmupWorker) RunOnce(ctx context.Context) {
	var accounts []models.EmailAccount
	if err := ww.DB.WithContext(ctx).Where("active = ?", true).Order("id").Find(&accounts).Error; err != nil {
		ww.Logger.WithError(err).Error("Error fetching active accounts")
		return
	}

	for i := range accounts {
		if ctx.Err() != nil {
			return
		}
		if err := ww.processAccount(ctx, &accounts[i]); err != nil {
			ww.Logger.WithError(err).WithField("account_id", accounts[i].ID).Error("Error processing warmup")
		}
	}
}

// AccountDay is everything the worker derives for one account on one day.
type AccountDay struct {
	Location  *time.Location
	DayStart  time.Time
	DayNumber int
	Limit     int
	Schedule  warmup.Schedule
}

// PlanDay loads the owner's settings and samples the account's schedule for
// the calendar day containing now, in the owner's timezone.
func PlanDay(db *gorm.DB, account *models.EmailAccount, now time.Time) (AccountDay, error) {
	var day AccountDay
	settings, timing, err := models.LoadSchedulingSettings(db, account.UserID)
	if err != nil {
		return day, err
	}
	cfg := timing.Config()

	day.Location = settings.Location()
	local := now.In(day.Location)
	y, m, d := local.Date()
	day.DayStart = time.Date(y, m, d, 0, 0, 0, 0, day.Location)

	started := now
	if account.WarmupStartedAt != nil {
		started = *account.WarmupStartedAt
	}
	day.DayNumber = warmup.DaysBetween(started, now, day.Location)

	limit, err := warmup.DailyLimit(day.DayNumber, cfg)
	if err != nil {
		return day, err
	}
	day.Limit = limit

	rnd := warmup.NewRand(warmup.SeedFor(account.ID, local))
	day.Schedule, err = warmup.Sample(warmup.RequestFor(cfg, limit, local), rnd)
	return day, err
}

func (ww *WarmupWorker) processAccount(ctx context.Context, account *models.EmailAccount) error {
	release, ok, err := ww.Locker.TryLock(ctx, fmt.Sprintf("warmup:account:%d", account.ID), ww.cfg.LockTTL)
	if err != nil {
		return err
	}
	if !ok {
		ww.Logger.WithField("account_id", account.ID).Debug("Account locked by another worker, skipping")
		return nil
	}
	defer release()

	now := ww.now()
	day, err := PlanDay(ww.DB, account, now)
	if err != nil {
		if errors.Is(err, warmup.ErrInvalidConfig) || errors.Is(err, warmup.ErrInvalidWindow) {
			ww.Logger.WithError(err).WithField("user_id", account.UserID).Warn("Invalid timing settings, skipping account")
			return nil
		}
		return err
	}
	if warn := day.Schedule.Warning(); warn != nil {
		ww.Logger.WithField("account_id", account.ID).Debug(warn.Error())
	}

	var sentToday int64
	if err := ww.DB.Model(&models.ActivityEvent{}).
		Where("email_account_id = ? AND type = ? AND occurred_at >= ?", account.ID, models.ActivitySent, day.DayStart.UTC()).
		Count(&sentToday).Error; err != nil {
		return err
	}

	pending := day.Schedule.Due(now) - int(sentToday)
	if pending <= 0 {
		return nil
	}
	if ww.cfg.WarmupBatch > 0 && pending > ww.cfg.WarmupBatch {
		pending = ww.cfg.WarmupBatch
	}

	ww.Logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"day":        day.DayNumber,
		"limit":      day.Limit,
		"pending":    pending,
	}).Info("Sending warmup emails")

	for i := 0; i < pending; i++ {
		to, err := ww.pickRecipient(account)
		if err != nil {
			return err
		}

		messageID, err := ww.Mailer.SendWarmupEmail(ctx, account, to)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ww.Recorder.Failure(account, ClassifySendError(err), err)
			// The account is likely to fail the same way for the rest of the batch.
			return nil
		}

		recipient := to
		if recipient == "" {
			recipient = ww.cfg.WarmupEmail
		}
		if err := ww.Recorder.Success(account, models.ActivitySent, messageID, "to "+recipient); err != nil {
			return err
		}
	}
	return nil
}

// pickRecipient rotates through the owner's other active accounts so each
// send lands in a mailbox the receive worker reads for the same owner. An empty result
// tells the mailer to use its fallback recipient.
func (ww *WarmupWorker) pickRecipient(account *models.EmailAccount) (string, error) {
	var peers []models.EmailAccount
	if err := ww.DB.Select("id", "email").
		Where("user_id = ? AND active = ? AND id <> ? AND email <> ?", account.UserID, true, account.ID, account.Email).
		Order("id").Find(&peers).Error; err != nil {
		return "", err
	}
	if len(peers) == 0 {
		return "", nil
	}

	var sent int64
	if err := ww.DB.Model(&models.ActivityEvent{}).
		Where("email_account_id = ? AND type = ?", account.ID, models.ActivitySent).
		Count(&sent).Error; err != nil {
		return "", err
	}
	return peers[int(sent)%len(peers)].Email, nil
}
