package warmup

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allOn(addr string) NotificationConfig {
	return NotificationConfig{
		NotificationEmail:     addr,
		NotifyOnAuthError:     true,
		NotifyOnSendError:     true,
		NotifyOnReceiveError:  true,
		NotifyOnSpamDetection: true,
		NotifyOnBounce:        true,
	}
}

func TestRouteAuthFlag(t *testing.T) {
	cfg := allOn("ops@example.com")
	assert.Equal(t, Decision{Notify: true, To: "ops@example.com"}, Route(KindAuth, cfg))

	cfg.NotifyOnAuthError = false
	assert.Equal(t, Decision{}, Route(KindAuth, cfg))
	assert.True(t, Route(KindSend, cfg).Notify)
}

func TestRouteEachKindFollowsItsFlag(t *testing.T) {
	flags := map[ErrorKind]func(*NotificationConfig){
		KindAuth:    func(c *NotificationConfig) { c.NotifyOnAuthError = false },
		KindSend:    func(c *NotificationConfig) { c.NotifyOnSendError = false },
		KindReceive: func(c *NotificationConfig) { c.NotifyOnReceiveError = false },
		KindSpam:    func(c *NotificationConfig) { c.NotifyOnSpamDetection = false },
		KindBounce:  func(c *NotificationConfig) { c.NotifyOnBounce = false },
	}
	for kind, disable := range flags {
		cfg := allOn("ops@example.com")
		disable(&cfg)
		assert.False(t, Route(kind, cfg).Notify, kind)
		for other := range flags {
			if other != kind {
				assert.True(t, Route(other, cfg).Notify, "%s with %s disabled", other, kind)
			}
		}
	}
}

func TestRouteRejectsBadAddress(t *testing.T) {
	for _, addr := range []string{"", "   ", "ops", "ops@example", "o ps@example.com", "@example.com"} {
		assert.Equal(t, Decision{}, Route(KindBounce, allOn(addr)), addr)
	}
	assert.Equal(t, Decision{}, Route(ErrorKind("unknown"), allOn("ops@example.com")))
}

func TestProperty_RouteNeverNotifiesWhenDisabled(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	kinds := []ErrorKind{KindAuth, KindSend, KindReceive, KindSpam, KindBounce}

	properties.Property("decision matches flag", prop.ForAll(
		func(idx int, flag bool, local string) bool {
			cfg := NotificationConfig{NotificationEmail: local + "@example.com"}
			switch kinds[idx] {
			case KindAuth:
				cfg.NotifyOnAuthError = flag
			case KindSend:
				cfg.NotifyOnSendError = flag
			case KindReceive:
				cfg.NotifyOnReceiveError = flag
			case KindSpam:
				cfg.NotifyOnSpamDetection = flag
			case KindBounce:
				cfg.NotifyOnBounce = flag
			}
			d := Route(kinds[idx], cfg)
			return d.Notify == flag && (!flag || d.To == cfg.NotificationEmail)
		},
		gen.IntRange(0, len(kinds)-1),
		gen.Bool(),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}

func TestParseOffset(t *testing.T) {
	loc, err := ParseOffset("UTC+05:30")
	require.NoError(t, err)
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*3600+30*60, offset)

	loc, err = ParseOffset("UTC-12:00")
	require.NoError(t, err)
	_, offset = time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -12*3600, offset)

	for _, bad := range []string{"", "UTC", "GMT+01:00", "UTC+15:00", "UTC+01:75", "UTC+1:00"} {
		_, err := ParseOffset(bad)
		assert.Error(t, err, bad)
	}
}

func TestDaysBetween(t *testing.T) {
	loc, err := ParseOffset("UTC+10:00")
	require.NoError(t, err)
	start := time.Date(2026, 10, 1, 15, 0, 0, 0, time.UTC) // Oct 2 01:00 in loc
	assert.Equal(t, 0, DaysBetween(start, time.Date(2026, 10, 1, 20, 0, 0, 0, time.UTC), loc))
	assert.Equal(t, 17, DaysBetween(start, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), loc))
	assert.Equal(t, 18, DaysBetween(start, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), time.UTC))
}
