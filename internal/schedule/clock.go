package schedule

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	// DefaultAnchor is the start of day used when nothing else anchors a timeline.
	DefaultAnchor = "08:00"

	minutesPerDay = 24 * 60
)

var timePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::\d{2})?$`)

// ToMinutes parses "HH:MM" (an optional ":SS" suffix is ignored) into minutes
// since midnight.
func ToMinutes(hhmm string) (int, error) {
	m := timePattern.FindStringSubmatch(hhmm)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, hhmm)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if hours > 23 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidTimeFormat, hhmm)
	}
	return hours*60 + minutes, nil
}

// ToTimeString renders minutes as "HH:MM", wrapping silently past midnight.
func ToTimeString(minutes int) string {
	m := ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// EndTime adds duration minutes to start.
func EndTime(start string, duration int) (string, error) {
	m, err := ToMinutes(start)
	if err != nil {
		return "", err
	}
	return ToTimeString(m + duration), nil
}

// FormatDuration renders minutes as "1h30", "2h" or "45min".
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	h, m := minutes/60, minutes%60
	if h == 0 {
		return fmt.Sprintf("%dmin", m)
	}
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%d", h, m)
}

// ValidTime reports whether s parses as a wall-clock time.
func ValidTime(s string) bool {
	_, err := ToMinutes(s)
	return err == nil
}
