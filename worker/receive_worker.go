package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"mailwarm/models"
	"mailwarm/utils"
	"mailwarm/warmup"
)

// MailboxScanner reads an account's mailbox. utils.IMAPScanner satisfies it.
type MailboxScanner interface {
	Scan(ctx context.Context, account *models.EmailAccount) (utils.MailboxScan, error)
}

// ReceiveWorker polls every active account over IMAP and records warmup
// messages that arrived, landed in spam, or bounced.
type ReceiveWorker struct {
	db       *gorm.DB
	scanner  MailboxScanner
	recorder *Recorder
	locker   Locker
	tick     time.Duration
	lockTTL  time.Duration
	logger   *logrus.Entry
}

func NewReceiveWorker(db *gorm.DB, scanner MailboxScanner, recorder *Recorder, locker Locker, tick, lockTTL time.Duration) *ReceiveWorker {
	return &ReceiveWorker{
		db:       db,
		scanner:  scanner,
		recorder: recorder,
		locker:   locker,
		tick:     tick,
		lockTTL:  lockTTL,
		logger:   logrus.WithField("worker", "receive"),
	}
}

func (rw *ReceiveWorker) Start(ctx context.Context) {
	rw.logger.Info("Starting receive worker...")
	ticker := time.NewTicker(rw.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rw.RunOnce(ctx)
		case <-ctx.Done():
			rw.logger.Info("Stopping receive worker...")
			return
		}
	}
}

func (rw *ReceiveWorker) RunOnce(ctx context.Context) {
	var accounts []models.EmailAccount
	if err := rw.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&accounts).Error; err != nil {
		rw.logger.WithError(err).Error("Failed to fetch active accounts")
		return
	}

	for i := range accounts {
		if ctx.Err() != nil {
			return
		}
		if err := rw.processAccount(ctx, &accounts[i]); err != nil {
			rw.logger.WithError(err).WithField("account_id", accounts[i].ID).Error("Failed to process mailbox")
		}
	}
}

func (rw *ReceiveWorker) processAccount(ctx context.Context, account *models.EmailAccount) error {
	release, ok, err := rw.locker.TryLock(ctx, fmt.Sprintf("receive:account:%d", account.ID), rw.lockTTL)
	if err != nil || !ok {
		return err
	}
	defer release()

	scan, err := rw.scanner.Scan(ctx, account)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		rw.recorder.Failure(account, ClassifyReceiveError(err), err)
		return nil
	}

	for _, msg := range scan.Received {
		if err := rw.recorder.Success(account, models.ActivityReceived, msg.MessageID, "from "+utils.SanitizeText(msg.From)); err != nil {
			return err
		}
	}
	for _, msg := range scan.Spam {
		rw.recorder.Failure(account, warmup.KindSpam, fmt.Errorf("warmup message from %s landed in spam: %s",
			msg.From, utils.SanitizeText(msg.Subject)))
	}
	for _, msg := range scan.Bounces {
		rw.recorder.Failure(account, warmup.KindBounce, fmt.Errorf("delivery failure report: %s", utils.SanitizeText(msg.Subject)))
	}

	if n := len(scan.Received) + len(scan.Spam) + len(scan.Bounces); n > 0 {
		rw.logger.WithFields(logrus.Fields{
			"account_id": account.ID,
			"received":   len(scan.Received),
			"spam":       len(scan.Spam),
			"bounces":    len(scan.Bounces),
		}).Info("Mailbox scanned")
	}
	return nil
}
