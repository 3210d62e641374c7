// Package timeutil converts UTC offset identifiers into absolute time and
// produces the date and sort keys used by the ledger.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	offsetPrefix  = "UTC"
	maxOffsetHour = 14
	minOffsetHour = -12

	// DateLayout is the calendar-date format used for range partitions.
	DateLayout = "2006-01-02"

	sortKeySuffixLen = 7
	secondsPerDay    = 24 * 60 * 60
)

// Clock returns the current instant; swapped in tests.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// newSuffix is overridable for tests.
var newSuffix = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:sortKeySuffixLen]
}

// ParseOffset converts "UTC±H" into a fixed zone. Malformed input yields UTC.
func ParseOffset(offset string) *time.Location {
	hours, ok := offsetHours(offset)
	if !ok || hours == 0 {
		return time.UTC
	}
	return time.FixedZone(FormatOffset(hours), hours*60*60)
}

// ValidOffset reports whether the identifier is a well-formed "UTC±H" offset.
func ValidOffset(offset string) bool {
	_, ok := offsetHours(offset)
	return ok
}

// FormatOffset renders an hour offset as "UTC+H" / "UTC-H".
func FormatOffset(hours int) string {
	if hours < 0 {
		return fmt.Sprintf("%s-%d", offsetPrefix, -hours)
	}
	return fmt.Sprintf("%s+%d", offsetPrefix, hours)
}

// NowInZone returns the clock's instant expressed in the given offset.
func NowInZone(clock Clock, offset string) time.Time {
	if clock == nil {
		clock = SystemClock
	}
	return clock().In(ParseOffset(offset))
}

// DateKey formats the instant's calendar date in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// SortKey builds the record key "<unix seconds, 10 digits>_<random suffix>".
// Keys order lexicographically by second; the suffix keeps keys created
// within the same second unique.
func SortKey(t time.Time) string {
	return fmt.Sprintf("%010d_%s", t.Unix(), newSuffix())
}

// SortKeyTime recovers the instant encoded in a sort key.
func SortKeyTime(key string) (time.Time, error) {
	secs, _, found := strings.Cut(key, "_")
	if !found {
		return time.Time{}, fmt.Errorf("sort key %q: missing suffix", key)
	}
	unix, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("sort key %q: %w", key, err)
	}
	return time.Unix(unix, 0).UTC(), nil
}

// SameUTCDate reports whether both instants share a UTC calendar date.
func SameUTCDate(a, b time.Time) bool {
	return DateKey(a.UTC()) == DateKey(b.UTC())
}

// UntilNextUTCDay returns the time remaining until the next UTC midnight.
func UntilNextUTCDay(now time.Time) time.Duration {
	elapsed := now.Unix() % secondsPerDay
	if elapsed < 0 {
		elapsed += secondsPerDay
	}
	return time.Duration(secondsPerDay-elapsed) * time.Second
}

// FormatCountdown renders a duration as "H hours and M minutes", dropping the
// hours when there are none.
func FormatCountdown(d time.Duration) string {
	minutes := int(d / time.Minute)
	hours, minutes := minutes/60, minutes%60
	if hours > 0 {
		return fmt.Sprintf("%d hours and %d minutes", hours, minutes)
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// StartOfWeek returns the Monday of the instant's week, keeping its location.
func StartOfWeek(t time.Time) time.Time {
	weekday := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -weekday)
}

// StartOfMonth returns the first day of the instant's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func offsetHours(offset string) (int, bool) {
	offset = strings.ToUpper(strings.TrimSpace(offset))
	if !strings.HasPrefix(offset, offsetPrefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(offset, offsetPrefix)
	if len(rest) < 2 || (rest[0] != '+' && rest[0] != '-') {
		return 0, false
	}
	hours, err := strconv.Atoi(rest[1:])
	if err != nil || strings.ContainsAny(rest[1:], "+-") {
		return 0, false
	}
	if rest[0] == '-' {
		hours = -hours
	}
	if hours < minOffsetHour || hours > maxOffsetHour {
		return 0, false
	}
	return hours, true
}
