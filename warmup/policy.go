// Package warmup holds the pure warmup policy: how many emails an account may
// send on a given day of its ramp, when those sends happen, and who hears about
// operational errors. Nothing in this package touches the network or storage.
package warmup

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidConfig   = errors.New("invalid warmup configuration")
	ErrInvalidWindow   = errors.New("invalid business hours window")
	ErrWindowTooNarrow = errors.New("business hours window too narrow for daily limit")
)

// RampType selects the curve used between the initial and maximum daily limit.
type RampType string

const (
	RampLinear      RampType = "linear"
	RampExponential RampType = "exponential"
	RampLogarithmic RampType = "logarithmic"
)

func (r RampType) Valid() bool {
	switch r {
	case RampLinear, RampExponential, RampLogarithmic:
		return true
	}
	return false
}

// TimingConfig is the immutable form of an owner's warmup timing settings.
type TimingConfig struct {
	MinIntervalMinutes int
	MaxIntervalMinutes int
	BusinessHoursOnly  bool
	BusinessHoursStart int
	BusinessHoursEnd   int
	WorkDays           []int
	InitialDailyLimit  int
	MaxDailyLimit      int
	RampUpDays         int
	RampUpType         RampType
}

// DefaultTimingConfig mirrors the values a new owner starts with.
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		MinIntervalMinutes: 60,
		MaxIntervalMinutes: 120,
		BusinessHoursOnly:  true,
		BusinessHoursStart: 9,
		BusinessHoursEnd:   17,
		WorkDays:           []int{1, 2, 3, 4, 5},
		InitialDailyLimit:  5,
		MaxDailyLimit:      30,
		RampUpDays:         14,
		RampUpType:         RampLinear,
	}
}

// Validate runs every static check on the configuration. The returned error
// wraps ErrInvalidConfig or ErrInvalidWindow.
func (c TimingConfig) Validate() error {
	if err := validateIntervals(c.MinIntervalMinutes, c.MaxIntervalMinutes); err != nil {
		return err
	}
	if c.BusinessHoursOnly {
		if err := validateWindow(c.BusinessHoursStart, c.BusinessHoursEnd); err != nil {
			return err
		}
	}
	if len(c.WorkDays) == 0 {
		return fmt.Errorf("%w: at least one work day is required", ErrInvalidConfig)
	}
	for _, d := range c.WorkDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: work day %d is not a weekday number", ErrInvalidConfig, d)
		}
	}
	return c.validateRamp()
}

func (c TimingConfig) validateRamp() error {
	if c.InitialDailyLimit <= 0 || c.MaxDailyLimit <= 0 {
		return fmt.Errorf("%w: daily limits must be positive", ErrInvalidConfig)
	}
	if c.InitialDailyLimit >= c.MaxDailyLimit {
		return fmt.Errorf("%w: maximum daily limit must be greater than initial daily limit", ErrInvalidConfig)
	}
	if c.RampUpDays <= 0 {
		return fmt.Errorf("%w: ramp-up days must be positive", ErrInvalidConfig)
	}
	if !c.RampUpType.Valid() {
		return fmt.Errorf("%w: unknown ramp-up type %q", ErrInvalidConfig, c.RampUpType)
	}
	return nil
}

// DailyLimit returns the number of warmup sends permitted on the given day of
// the ramp. Day 0 yields the initial limit and any day at or past RampUpDays
// yields the maximum. Negative days are treated as day 0.
func DailyLimit(daysSinceStart int, cfg TimingConfig) (int, error) {
	if err := cfg.validateRamp(); err != nil {
		return 0, err
	}
	return dailyLimit(daysSinceStart, cfg), nil
}

func dailyLimit(day int, cfg TimingConfig) int {
	if day <= 0 {
		return cfg.InitialDailyLimit
	}
	if day >= cfg.RampUpDays {
		return cfg.MaxDailyLimit
	}

	t := float64(day) / float64(cfg.RampUpDays)
	var f float64
	switch cfg.RampUpType {
	case RampExponential:
		f = t * t
	case RampLogarithmic:
		f = math.Sqrt(t)
	default:
		f = t
	}

	span := float64(cfg.MaxDailyLimit - cfg.InitialDailyLimit)
	limit := cfg.InitialDailyLimit + int(math.Round(span*f))
	if limit < cfg.InitialDailyLimit {
		return cfg.InitialDailyLimit
	}
	if limit > cfg.MaxDailyLimit {
		return cfg.MaxDailyLimit
	}
	return limit
}

// Plan returns the daily limits for days 0 through days-1.
func Plan(days int, cfg TimingConfig) ([]int, error) {
	if err := cfg.validateRamp(); err != nil {
		return nil, err
	}
	if days < 0 {
		days = 0
	}
	limits := make([]int, days)
	for d := range limits {
		limits[d] = dailyLimit(d, cfg)
	}
	return limits, nil
}
