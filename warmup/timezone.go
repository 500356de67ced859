package warmup

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var offsetPattern = regexp.MustCompile(`^UTC([+-])(\d{2}):(\d{2})$`)

// ParseOffset turns a fixed offset label such as "UTC+05:30" into a location.
// Offsets range from UTC-12:00 to UTC+14:00.
func ParseOffset(label string) (*time.Location, error) {
	m := offsetPattern.FindStringSubmatch(label)
	if m == nil {
		return nil, fmt.Errorf("invalid timezone %q", label)
	}
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	if minutes >= 60 {
		return nil, fmt.Errorf("invalid timezone %q", label)
	}
	secs := hours*3600 + minutes*60
	if m[1] == "-" {
		secs = -secs
	}
	if secs < -12*3600 || secs > 14*3600 {
		return nil, fmt.Errorf("timezone %q out of range", label)
	}
	return time.FixedZone(label, secs), nil
}

// DaysBetween counts whole calendar days from start to day, both read in loc.
func DaysBetween(start, day time.Time, loc *time.Location) int {
	sy, sm, sd := start.In(loc).Date()
	dy, dm, dd := day.In(loc).Date()
	a := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	b := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
