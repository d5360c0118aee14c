package schedule

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// BUSINESS TIMEZONE - All "now"/"today" decisions happen in one civil zone
// =============================================================================

// BusinessZoneName is the fixed IANA zone the product operates in. The
// product is single-city: a visiting user's device timezone must never
// change which dates count as "upcoming".
const BusinessZoneName = "America/Bogota"

var (
	bizOnce sync.Once
	bizLoc  *time.Location
)

// BusinessZone returns the business timezone location. If the tz database
// is unavailable the fixed UTC-5 offset is used (Bogota has no DST).
func BusinessZone() *time.Location {
	bizOnce.Do(func() {
		loc, err := time.LoadLocation(BusinessZoneName)
		if err != nil {
			loc = time.FixedZone("-05", -5*60*60)
		}
		bizLoc = loc
	})
	return bizLoc
}

// BusinessNow converts an instant into business civil time.
func BusinessNow(instant time.Time) time.Time {
	return instant.In(BusinessZone())
}

// BusinessToday returns the civil date of the given instant in the
// business timezone.
func BusinessToday(instant time.Time) CivilDate {
	t := BusinessNow(instant)
	return CivilDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// =============================================================================
// CIVIL DATE - A calendar date with no time-of-day and no zone
// =============================================================================

type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

func NewCivilDate(year int, month time.Month, day int) CivilDate {
	return CivilDate{Year: year, Month: month, Day: day}
}

// ParseCivilDate parses "2006-01-02".
func ParseCivilDate(s string) (CivilDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return CivilDate{}, fmt.Errorf("invalid calendar date %q: %w", s, err)
	}
	return CivilDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d CivilDate) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d CivilDate) IsZero() bool            { return d == CivilDate{} }
func (d CivilDate) Before(o CivilDate) bool { return d.time().Before(o.time()) }
func (d CivilDate) After(o CivilDate) bool  { return d.time().After(o.time()) }
func (d CivilDate) Equal(o CivilDate) bool  { return d == o }
func (d CivilDate) Weekday() time.Weekday   { return d.time().Weekday() }
func (d CivilDate) String() string          { return d.time().Format("2006-01-02") }

func (d CivilDate) AddDays(n int) CivilDate {
	t := d.time().AddDate(0, 0, n)
	return CivilDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// =============================================================================
// CLOCK TIME - "HH:MM" wall-clock time within the business zone
// =============================================================================

type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "15:04" (and tolerates "15:04:05").
func ParseClockTime(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
}

// IsClockTime reports whether s is a well-formed clock time. Empty strings
// are not clock times; callers decide whether empty means "no time set".
func IsClockTime(s string) bool {
	_, err := ParseClockTime(s)
	return err == nil
}

func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

func (c ClockTime) Before(o ClockTime) bool { return c.Minutes() < o.Minutes() }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }
