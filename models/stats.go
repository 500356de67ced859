package models

import (
	"math"
	"time"

	"gorm.io/gorm"
	"mailwarm/warmup"
)

// ActivitySummary aggregates activity events over a time range.
type ActivitySummary struct {
	Sent         int64   `json:"sent"`
	Received     int64   `json:"received"`
	Errors       int64   `json:"errors"`
	Spam         int64   `json:"spam"`
	Bounces      int64   `json:"bounces"`
	DeliveryRate float64 `json:"delivery_rate"`
}

// SummarizeActivity counts one owner's events in [since, until).
func SummarizeActivity(db *gorm.DB, userID uint, since, until time.Time) (ActivitySummary, error) {
	var rows []struct {
		Type      string
		ErrorKind string
		Total     int64
	}
	err := db.Model(&ActivityEvent{}).
		Select("type, error_kind, count(*) as total").
		Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, since.UTC(), until.UTC()).
		Group("type, error_kind").
		Scan(&rows).Error
	if err != nil {
		return ActivitySummary{}, err
	}

	var s ActivitySummary
	for _, r := range rows {
		switch r.Type {
		case ActivitySent:
			s.Sent += r.Total
		case ActivityReceived:
			s.Received += r.Total
		case ActivityError:
			s.Errors += r.Total
			switch r.ErrorKind {
			case string(warmup.KindSpam):
				s.Spam += r.Total
			case string(warmup.KindBounce):
				s.Bounces += r.Total
			}
		}
	}
	if s.Sent > 0 {
		rate := float64(s.Sent-s.Bounces-s.Spam) / float64(s.Sent) * 100
		s.DeliveryRate = math.Round(math.Max(rate, 0)*10) / 10
	}
	return s, nil
}
