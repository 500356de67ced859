package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"mailwarm/config"
	"mailwarm/models"
	"mailwarm/utils"
	"mailwarm/warmup"
)

// Monday evening, after every sampled send of the day.
var mondayEvening = time.Date(2026, time.October, 19, 23, 30, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig())
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, email string) models.EmailAccount {
	t.Helper()
	user := models.User{Email: "owner-" + email, PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)

	timing := models.DefaultWarmupTimingSettings(user.ID)
	timing.BusinessHoursOnly = false
	timing.MinIntervalMinutes = 1
	timing.MaxIntervalMinutes = 2
	require.NoError(t, db.Create(&timing).Error)

	return seedMailbox(t, db, user.ID, email)
}

// seedMailbox enrolls another active mailbox for an existing owner.
func seedMailbox(t *testing.T, db *gorm.DB, userID uint, email string) models.EmailAccount {
	t.Helper()
	started := mondayEvening.Add(-time.Hour)
	account := models.EmailAccount{
		UserID:          userID,
		Email:           email,
		SMTPHost:        "smtp.example.com",
		SMTPPort:        587,
		SMTPUsername:    email,
		SMTPPassword:    "sealed",
		IMAPHost:        "imap.example.com",
		IMAPPort:        993,
		IMAPUsername:    email,
		IMAPPassword:    "sealed",
		UseSSL:          true,
		Active:          true,
		WarmupStartedAt: &started,
	}
	require.NoError(t, db.Create(&account).Error)
	return account
}

type fakeMailer struct {
	mu   sync.Mutex
	sent map[uint][]string
	err  error
}

func (m *fakeMailer) SendWarmupEmail(_ context.Context, account *models.EmailAccount, to string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.sent == nil {
		m.sent = map[uint][]string{}
	}
	m.sent[account.ID] = append(m.sent[account.ID], to)
	return fmt.Sprintf("<%d.%d@example.com>", account.ID, len(m.sent[account.ID])), nil
}

type fakeAlerts struct {
	to    []string
	kinds []warmup.ErrorKind
}

func (a *fakeAlerts) SendErrorAlert(to string, kind warmup.ErrorKind, _, _ string) error {
	a.to = append(a.to, to)
	a.kinds = append(a.kinds, kind)
	return nil
}

func newTestWorker(db *gorm.DB, mailer Mailer, alerts AlertSender) *WarmupWorker {
	clock := func() time.Time { return mondayEvening }
	recorder := NewRecorder(db, alerts, time.Hour)
	recorder.now = clock
	ww := NewWarmupWorker(db, mailer, recorder, NewMemoryLocker(), config.WorkerConfig{
		WarmupBatch: 50,
		LockTTL:     time.Minute,
	})
	ww.now = clock
	return ww
}

func countEvents(t *testing.T, db *gorm.DB, accountID uint, activity string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.ActivityEvent{}).
		Where("email_account_id = ? AND type = ?", accountID, activity).Count(&n).Error)
	return n
}

func TestWarmupWorkerSendsDueQuotaOnce(t *testing.T) {
	db := openTestDB(t)
	a := seedAccount(t, db, "a@example.com")
	b := seedMailbox(t, db, a.UserID, "b@example.com")

	mailer := &fakeMailer{}
	ww := newTestWorker(db, mailer, nil)

	ww.RunOnce(context.Background())

	// Day 0 of the ramp allows the initial limit.
	assert.Len(t, mailer.sent[a.ID], 5)
	assert.Len(t, mailer.sent[b.ID], 5)
	for _, to := range mailer.sent[a.ID] {
		assert.Equal(t, "b@example.com", to)
	}
	assert.Equal(t, int64(5), countEvents(t, db, a.ID, models.ActivitySent))

	ww.RunOnce(context.Background())
	assert.Len(t, mailer.sent[a.ID], 5, "quota already used today")
}

func TestWarmupWorkerKeepsPeersWithinOwner(t *testing.T) {
	db := openTestDB(t)
	alice := seedAccount(t, db, "alice@a.example")
	bob := seedAccount(t, db, "bob@b.example")
	alice2 := seedMailbox(t, db, alice.UserID, "alice2@a.example")

	mailer := &fakeMailer{}
	ww := newTestWorker(db, mailer, nil)
	ww.RunOnce(context.Background())

	for _, to := range mailer.sent[alice.ID] {
		assert.Equal(t, "alice2@a.example", to)
	}
	for _, to := range mailer.sent[alice2.ID] {
		assert.Equal(t, "alice@a.example", to)
	}
	assert.Equal(t, []string{"", "", "", "", ""}, mailer.sent[bob.ID], "an owner with one mailbox uses the fallback recipient")

	var feed []models.ActivityEvent
	require.NoError(t, db.Where("user_id = ?", alice.UserID).Find(&feed).Error)
	require.NotEmpty(t, feed)
	for _, e := range feed {
		assert.NotContains(t, e.Message, "bob@b.example")
	}
}

func TestWarmupWorkerRespectsBatchSize(t *testing.T) {
	db := openTestDB(t)
	a := seedAccount(t, db, "solo@example.com")

	mailer := &fakeMailer{}
	ww := newTestWorker(db, mailer, nil)
	ww.cfg.WarmupBatch = 2

	ww.RunOnce(context.Background())
	assert.Len(t, mailer.sent[a.ID], 2)
	assert.Equal(t, []string{"", ""}, mailer.sent[a.ID], "no peers means the fallback recipient")

	ww.RunOnce(context.Background())
	ww.RunOnce(context.Background())
	assert.Len(t, mailer.sent[a.ID], 5)
}

func TestWarmupWorkerRecordsAndRoutesFailures(t *testing.T) {
	db := openTestDB(t)
	a := seedAccount(t, db, "fail@example.com")

	settings := models.DefaultErrorEmailSettings(a.UserID)
	settings.NotificationEmail = "ops@example.com"
	require.NoError(t, db.Create(&settings).Error)

	alerts := &fakeAlerts{}
	ww := newTestWorker(db, &fakeMailer{err: errors.New("535 5.7.8 authentication failed")}, alerts)

	ww.RunOnce(context.Background())

	var event models.ActivityEvent
	require.NoError(t, db.Where("email_account_id = ? AND type = ?", a.ID, models.ActivityError).First(&event).Error)
	assert.Equal(t, string(warmup.KindAuth), event.ErrorKind)
	assert.Equal(t, int64(1), countEvents(t, db, a.ID, models.ActivityError), "batch stops after the first failure")

	var stored models.EmailAccount
	require.NoError(t, db.First(&stored, a.ID).Error)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "535")

	assert.Equal(t, []string{"ops@example.com"}, alerts.to)
	assert.Equal(t, []warmup.ErrorKind{warmup.KindAuth}, alerts.kinds)
}

func TestWarmupWorkerSkipsDisabledNotifications(t *testing.T) {
	db := openTestDB(t)
	a := seedAccount(t, db, "quiet@example.com")

	settings := models.DefaultErrorEmailSettings(a.UserID)
	settings.NotificationEmail = "ops@example.com"
	settings.NotifyOnSendError = false
	require.NoError(t, db.Create(&settings).Error)

	alerts := &fakeAlerts{}
	ww := newTestWorker(db, &fakeMailer{err: errors.New("connection reset by peer")}, alerts)
	ww.RunOnce(context.Background())

	assert.Equal(t, int64(1), countEvents(t, db, a.ID, models.ActivityError))
	assert.Empty(t, alerts.to)
}

func TestWarmupWorkerSkipsLockedAccount(t *testing.T) {
	db := openTestDB(t)
	a := seedAccount(t, db, "locked@example.com")

	mailer := &fakeMailer{}
	ww := newTestWorker(db, mailer, nil)

	release, ok, err := ww.Locker.TryLock(context.Background(), fmt.Sprintf("warmup:account:%d", a.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ww.RunOnce(context.Background())
	assert.Empty(t, mailer.sent[a.ID])

	release()
	ww.RunOnce(context.Background())
	assert.Len(t, mailer.sent[a.ID], 5)
}

func TestPlanDayUsesOwnerTimezone(t *testing.T) {
	db := openTestDB(t)
	a := seedAccount(t, db, "tz@example.com")

	profile := models.DefaultUserSettings(a.UserID)
	profile.Timezone = "UTC+05:30"
	require.NoError(t, db.Create(&profile).Error)

	// 23:30 UTC Monday is already Tuesday in UTC+05:30.
	day, err := PlanDay(db, &a, mondayEvening)
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, day.DayStart.Weekday())
	assert.Equal(t, 0, day.DayNumber, "started the same local day")
	assert.True(t, day.Schedule.WorkDay)
	for _, s := range day.Schedule.Sends {
		assert.False(t, s.Before(day.DayStart))
	}

	again, err := PlanDay(db, &a, mondayEvening)
	require.NoError(t, err)
	assert.Equal(t, day.Schedule.Sends, again.Schedule.Sends, "same account and date give the same plan")
}

type fakeScanner struct {
	scan utils.MailboxScan
	err  error
}

func (s fakeScanner) Scan(context.Context, *models.EmailAccount) (utils.MailboxScan, error) {
	return s.scan, s.err
}

func TestReceiveWorkerRecordsMailbox(t *testing.T) {
	db := openTestDB(t)
	a := seedAccount(t, db, "inbox@example.com")

	scanner := fakeScanner{scan: utils.MailboxScan{
		Received: []utils.InboxMessage{{MessageID: "<1@x>", From: "peer@example.com"}, {MessageID: "<2@x>"}},
		Spam:     []utils.InboxMessage{{MessageID: "<3@x>", Subject: "hello"}},
		Bounces:  []utils.InboxMessage{{Subject: "Undelivered Mail Returned to Sender"}},
	}}
	rw := NewReceiveWorker(db, scanner, NewRecorder(db, nil, 0), NewMemoryLocker(), time.Minute, time.Minute)
	rw.RunOnce(context.Background())

	assert.Equal(t, int64(2), countEvents(t, db, a.ID, models.ActivityReceived))

	var kinds []string
	require.NoError(t, db.Model(&models.ActivityEvent{}).
		Where("email_account_id = ? AND type = ?", a.ID, models.ActivityError).
		Order("error_kind").Pluck("error_kind", &kinds).Error)
	assert.Equal(t, []string{"bounce", "spam"}, kinds)
}

func TestReceiveWorkerClassifiesScanErrors(t *testing.T) {
	db := openTestDB(t)
	a := seedAccount(t, db, "broken@example.com")

	scanner := fakeScanner{err: errors.New("IMAP authentication failed: [AUTHENTICATIONFAILED] Invalid credentials")}
	rw := NewReceiveWorker(db, scanner, NewRecorder(db, nil, 0), NewMemoryLocker(), time.Minute, time.Minute)
	rw.RunOnce(context.Background())

	var event models.ActivityEvent
	require.NoError(t, db.Where("email_account_id = ?", a.ID).First(&event).Error)
	assert.Equal(t, string(warmup.KindAuth), event.ErrorKind)
}

func TestRecorderThrottlesRepeatedAlerts(t *testing.T) {
	db := openTestDB(t)
	a := seedAccount(t, db, "noisy@example.com")

	settings := models.DefaultErrorEmailSettings(a.UserID)
	settings.NotificationEmail = "ops@example.com"
	require.NoError(t, db.Create(&settings).Error)

	alerts := &fakeAlerts{}
	ww := newTestWorker(db, &fakeMailer{err: errors.New("535 authentication failed")}, alerts)

	ww.RunOnce(context.Background())
	ww.RunOnce(context.Background())
	assert.Equal(t, int64(2), countEvents(t, db, a.ID, models.ActivityError))
	assert.Len(t, alerts.to, 1, "second alert within the interval is suppressed")

	later := mondayEvening.Add(61 * time.Minute)
	ww.Recorder.now = func() time.Time { return later }
	ww.Recorder.Failure(&a, warmup.KindAuth, errors.New("535 authentication failed"))
	assert.Len(t, alerts.to, 2)

	ww.Recorder.Failure(&a, warmup.KindBounce, errors.New("550 no such user"))
	assert.Len(t, alerts.to, 3, "each error kind has its own allowance")
}
