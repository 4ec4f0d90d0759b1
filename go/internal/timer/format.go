package timer

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatMillis renders ms as MM:SS (HH:MM:SS once an hour is reached) with a
// fractional part matching the precision. Values are truncated toward zero;
// negative values get a leading "-".
func FormatMillis(ms int64, p Precision) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}

	hours := ms / 3_600_000
	ms %= 3_600_000
	minutes := ms / 60_000
	ms %= 60_000
	seconds := ms / 1000
	ms %= 1000

	var base string
	if hours > 0 {
		base = fmt.Sprintf("%s%02d:%02d:%02d", sign, hours, minutes, seconds)
	} else {
		base = fmt.Sprintf("%s%02d:%02d", sign, minutes, seconds)
	}

	switch p {
	case PrecisionDecisecond:
		return fmt.Sprintf("%s.%01d", base, ms/100)
	case PrecisionCentisecond:
		return fmt.Sprintf("%s.%02d", base, ms/10)
	case PrecisionMillisecond:
		return fmt.Sprintf("%s.%03d", base, ms)
	default:
		return base
	}
}

// ParseDuration parses "HH:MM:SS", "MM:SS" or "SS" into milliseconds
func ParseDuration(s string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: malformed duration %q", ErrInvalidConfig, s)
	}

	var seconds int64
	for _, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: malformed duration %q", ErrInvalidConfig, s)
		}
		if n > MaxDurationLimitMs/1000 || seconds > (MaxDurationLimitMs/1000-n)/60 {
			return 0, fmt.Errorf("%w: duration %q is too large", ErrInvalidConfig, s)
		}
		seconds = seconds*60 + n
	}
	return seconds * 1000, nil
}
