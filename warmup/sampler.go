package warmup

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"
)

// Rand is the randomness the sampler draws from. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// NewRand returns a generator seeded for reproducible schedules.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// SeedFor derives a stable seed for one account on one calendar date, so the
// same day always yields the same plan.
func SeedFor(accountID uint, date time.Time) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", accountID, date.Format("2006-01-02"))
	return int64(h.Sum64() >> 1)
}

// SampleRequest describes one account-day to be scheduled. Date is any instant
// on the target calendar day; its Location decides the wall clock.
type SampleRequest struct {
	DailyLimit         int
	MinIntervalMinutes int
	MaxIntervalMinutes int
	BusinessHoursOnly  bool
	BusinessHoursStart int
	BusinessHoursEnd   int
	WorkDays           []int
	Date               time.Time
}

// RequestFor builds a SampleRequest from an owner's timing configuration.
func RequestFor(cfg TimingConfig, dailyLimit int, date time.Time) SampleRequest {
	return SampleRequest{
		DailyLimit:         dailyLimit,
		MinIntervalMinutes: cfg.MinIntervalMinutes,
		MaxIntervalMinutes: cfg.MaxIntervalMinutes,
		BusinessHoursOnly:  cfg.BusinessHoursOnly,
		BusinessHoursStart: cfg.BusinessHoursStart,
		BusinessHoursEnd:   cfg.BusinessHoursEnd,
		WorkDays:           cfg.WorkDays,
		Date:               date,
	}
}

// Schedule is the sampled send plan for a single day.
type Schedule struct {
	Requested   int
	WorkDay     bool
	WindowStart time.Time
	WindowEnd   time.Time
	Sends       []time.Time
}

// Warning reports ErrWindowTooNarrow when fewer sends than requested fit in
// the window. It is informational; the schedule is still usable.
func (s Schedule) Warning() error {
	if s.WorkDay && len(s.Sends) < s.Requested {
		return fmt.Errorf("%w: scheduled %d of %d sends", ErrWindowTooNarrow, len(s.Sends), s.Requested)
	}
	return nil
}

// Due counts the sends scheduled at or before now.
func (s Schedule) Due(now time.Time) int {
	n := 0
	for _, t := range s.Sends {
		if t.After(now) {
			break
		}
		n++
	}
	return n
}

// Capacity is the largest number of sends that fit in a window of the given
// length when consecutive sends are at least minInterval apart and the last
// one must fall strictly before the window closes. When the window is an exact
// multiple of minInterval this is one less than floor(window/minInterval)+1,
// because that extra send would land on the closing instant.
func Capacity(window, minInterval time.Duration) int {
	if window <= 0 || minInterval <= 0 {
		return 0
	}
	last := int64(window/time.Second) - 1
	return int(last/int64(minInterval/time.Second)) + 1
}

// Sample turns a day's limit into concrete, strictly increasing send times.
func Sample(req SampleRequest, rnd Rand) (Schedule, error) {
	if err := validateIntervals(req.MinIntervalMinutes, req.MaxIntervalMinutes); err != nil {
		return Schedule{}, err
	}
	if req.BusinessHoursOnly {
		if err := validateWindow(req.BusinessHoursStart, req.BusinessHoursEnd); err != nil {
			return Schedule{}, err
		}
	}

	start, end := window(req)
	sched := Schedule{
		Requested:   max(req.DailyLimit, 0),
		WorkDay:     isWorkDay(start.Weekday(), req.WorkDays),
		WindowStart: start,
		WindowEnd:   end,
	}
	if !sched.WorkDay || sched.Requested == 0 {
		return sched, nil
	}

	minGap := int64(req.MinIntervalMinutes) * 60
	maxGap := int64(req.MaxIntervalMinutes) * 60
	available := int64(end.Sub(start)/time.Second) - 1

	n := min(sched.Requested, Capacity(end.Sub(start), time.Duration(minGap)*time.Second))
	if n <= 0 {
		return sched, nil
	}

	sends := make([]time.Time, 0, n)
	offset := between(rnd, 0, min(maxGap, available-int64(n-1)*minGap))
	sends = append(sends, start.Add(time.Duration(offset)*time.Second))
	for k := 1; k < n; k++ {
		hi := min(maxGap, available-offset-int64(n-1-k)*minGap)
		offset += between(rnd, minGap, hi)
		sends = append(sends, start.Add(time.Duration(offset)*time.Second))
	}
	sched.Sends = sends
	return sched, nil
}

func window(req SampleRequest) (time.Time, time.Time) {
	y, m, d := req.Date.Date()
	loc := req.Date.Location()
	if req.BusinessHoursOnly {
		return time.Date(y, m, d, req.BusinessHoursStart, 0, 0, 0, loc),
			time.Date(y, m, d, req.BusinessHoursEnd, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// between returns a uniform value in [lo, hi].
func between(rnd Rand, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + int64(rnd.Intn(int(hi-lo+1)))
}

func isWorkDay(wd time.Weekday, days []int) bool {
	for _, d := range days {
		if d == int(wd) {
			return true
		}
	}
	return false
}

func validateIntervals(minMinutes, maxMinutes int) error {
	if minMinutes <= 0 || maxMinutes <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	if minMinutes >= maxMinutes {
		return fmt.Errorf("%w: maximum interval must be greater than minimum interval", ErrInvalidConfig)
	}
	return nil
}

func validateWindow(start, end int) error {
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return fmt.Errorf("%w: hours must be between 0 and 23", ErrInvalidWindow)
	}
	if start >= end {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidWindow)
	}
	return nil
}
