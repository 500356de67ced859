package controller_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	controller "mailwarm/controllers"
	"mailwarm/models"
)

type timingResponse struct {
	Settings models.WarmupTimingSettings `json:"settings"`
	Exists   bool                        `json:"exists"`
	Created  bool                        `json:"created"`
	NextStep *string                     `json:"next_step"`
}

func TestTimingSettingsLifecycle(t *testing.T) {
	s := newTestServer(t)
	_, token := s.login("owner@example.com")

	var got timingResponse
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/api/v1/settings/timing", token, nil, &got))
	assert.False(t, got.Exists)
	assert.Equal(t, 5, got.Settings.InitialDailyLimit)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got.Settings.WorkDays)

	var saved timingResponse
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPut, "/api/v1/settings/timing", token,
		map[string]interface{}{"max_daily_limit": 50, "ramp_up_type": "exponential"}, &saved))
	assert.True(t, saved.Created)
	require.NotNil(t, saved.NextStep)
	assert.Equal(t, controller.StepEmailAccounts, *saved.NextStep)
	assert.Equal(t, 50, saved.Settings.MaxDailyLimit)
	assert.Equal(t, 60, saved.Settings.MinIntervalMinutes, "untouched fields keep their defaults")

	var again timingResponse
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPut, "/api/v1/settings/timing", token,
		map[string]interface{}{"work_days": []int{0, 6}}, &again))
	assert.False(t, again.Created)
	assert.Nil(t, again.NextStep)
	assert.Equal(t, 50, again.Settings.MaxDailyLimit)
	assert.Equal(t, []int{0, 6}, again.Settings.WorkDays)

	var count int64
	require.NoError(t, s.db.Model(&models.WarmupTimingSettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTimingSettingsRejectsInvalidMerge(t *testing.T) {
	s := newTestServer(t)
	_, token := s.login("owner@example.com")

	cases := []map[string]interface{}{
		{"min_interval_minutes": 120},
		{"business_hours_start": 17, "business_hours_end": 9},
		{"initial_daily_limit": 40},
		{"ramp_up_type": "sideways"},
		{"work_days": []int{}},
		{"work_days": []int{7}},
		{"business_hours_end": 24},
	}
	for _, body := range cases {
		assert.Equal(t, fiber.StatusBadRequest, s.do(fiber.MethodPut, "/api/v1/settings/timing", token, body, nil), body)
	}

	var got timingResponse
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/api/v1/settings/timing", token, nil, &got))
	assert.False(t, got.Exists, "nothing is stored after rejected updates")
}

func TestAccountAndNotificationSettings(t *testing.T) {
	s := newTestServer(t)
	_, token := s.login("owner@example.com")

	assert.Equal(t, fiber.StatusBadRequest, s.do(fiber.MethodPut, "/api/v1/settings/account", token,
		map[string]interface{}{"timezone": "Europe/Paris"}, nil))

	var account struct {
		Settings models.UserSettings `json:"settings"`
		NextStep string              `json:"next_step"`
	}
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPut, "/api/v1/settings/account", token,
		map[string]interface{}{"name": "  <b>Dana</b> ", "timezone": "UTC+02:00", "daily_summary": false}, &account))
	assert.Equal(t, "Dana", account.Settings.Name)
	assert.Equal(t, "UTC+02:00", account.Settings.Timezone)
	assert.False(t, account.Settings.DailySummary)
	assert.True(t, account.Settings.WeeklyReport)
	assert.Equal(t, controller.StepNotifications, account.NextStep)

	assert.Equal(t, fiber.StatusBadRequest, s.do(fiber.MethodPut, "/api/v1/settings/notifications", token,
		map[string]interface{}{"notification_email": "not-an-address"}, nil))

	var notif struct {
		Settings models.ErrorEmailSettings `json:"settings"`
		NextStep string                    `json:"next_step"`
	}
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPut, "/api/v1/settings/notifications", token,
		map[string]interface{}{"notification_email": " ops@example.com ", "notify_on_bounce": false}, &notif))
	assert.Equal(t, "ops@example.com", notif.Settings.NotificationEmail)
	assert.False(t, notif.Settings.NotifyOnBounce)
	assert.True(t, notif.Settings.NotifyOnAuthError)
	assert.Equal(t, controller.StepTiming, notif.NextStep)
}

func TestNotificationSettingsRequireAddress(t *testing.T) {
	s := newTestServer(t)
	_, token := s.login("owner@example.com")

	var resp map[string]string
	assert.Equal(t, fiber.StatusBadRequest, s.do(fiber.MethodPut, "/api/v1/settings/notifications", token,
		map[string]interface{}{"notify_on_bounce": false}, &resp))
	assert.Equal(t, controller.ErrNotificationEmailRequired, resp["error"])

	var current struct {
		Exists bool `json:"exists"`
	}
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/api/v1/settings/notifications", token, nil, &current))
	assert.False(t, current.Exists, "a rejected update stores nothing")

	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPut, "/api/v1/settings/notifications", token,
		map[string]interface{}{"notification_email": "ops@example.com"}, nil))
	assert.Equal(t, fiber.StatusBadRequest, s.do(fiber.MethodPut, "/api/v1/settings/notifications", token,
		map[string]interface{}{"notification_email": "  "}, nil), "a stored address cannot be cleared")

	var stored struct {
		Settings models.ErrorEmailSettings `json:"settings"`
	}
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/api/v1/settings/notifications", token, nil, &stored))
	assert.Equal(t, "ops@example.com", stored.Settings.NotificationEmail)
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPut, "/api/v1/settings/notifications", token,
		map[string]interface{}{"notify_on_spam_detection": false}, nil), "toggles alone are fine once an address is stored")
}

func TestSetupStatus(t *testing.T) {
	s := newTestServer(t)
	_, token := s.login("owner@example.com")

	type status struct {
		Steps    []controller.SetupStep `json:"steps"`
		NextStep string                 `json:"next_step"`
		Complete bool                   `json:"complete"`
	}

	var st status
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/api/v1/setup/status", token, nil, &st))
	assert.Equal(t, controller.StepAccount, st.NextStep)
	assert.Len(t, st.Steps, 4)
	assert.False(t, st.Complete)

	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPut, "/api/v1/settings/notifications", token,
		map[string]interface{}{"notification_email": "ops@example.com"}, nil))
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/api/v1/setup/status", token, nil, &st))
	assert.Equal(t, controller.StepAccount, st.NextStep, "the earliest missing step wins")

	assert.Equal(t, fiber.StatusBadRequest, s.do(fiber.MethodPut, "/api/v1/settings/account", token,
		map[string]interface{}{"name": "<p> </p>"}, nil), "a blank name is rejected")
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPut, "/api/v1/settings/account", token,
		map[string]interface{}{"name": "Dana"}, nil))
	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodPut, "/api/v1/settings/timing", token, map[string]interface{}{}, nil))
	require.Equal(t, fiber.StatusCreated, s.do(fiber.MethodPost, "/api/v1/email-accounts", token, accountBody("box@example.com"), nil))

	require.Equal(t, fiber.StatusOK, s.do(fiber.MethodGet, "/api/v1/setup/status", token, nil, &st))
	assert.True(t, st.Complete)
	assert.Empty(t, st.NextStep)
}

func TestSettingsRequireAuth(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, fiber.StatusUnauthorized, s.do(fiber.MethodGet, "/api/v1/settings/timing", "", nil, nil))
}
