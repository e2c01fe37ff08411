package extractor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseUTCOffset reads a provider UTC delta. Accepted forms: "0", "+2",
// "-3", "+5.5", "+05:30", "UTC+9", "GMT-2:30".
func ParseUTCOffset(raw string) (time.Duration, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "UTC")
	value = strings.TrimPrefix(value, "GMT")
	if value == "" || value == "Z" {
		return 0, nil
	}

	sign := time.Duration(1)
	switch value[0] {
	case '+':
		value = value[1:]
	case '-':
		sign = -1
		value = value[1:]
	}
	if value == "" {
		return 0, fmt.Errorf("invalid utc offset %q", raw)
	}

	var offset time.Duration
	if hours, minutes, ok := strings.Cut(value, ":"); ok {
		h, err := strconv.Atoi(hours)
		if err != nil {
			return 0, fmt.Errorf("invalid utc offset %q: %w", raw, err)
		}
		m, err := strconv.Atoi(minutes)
		if err != nil || m < 0 || m >= 60 {
			return 0, fmt.Errorf("invalid utc offset minutes in %q", raw)
		}
		offset = time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	} else {
		hours, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(hours) || math.IsInf(hours, 0) {
			return 0, fmt.Errorf("invalid utc offset %q", raw)
		}
		offset = time.Duration(math.Round(hours * float64(time.Hour)))
	}
	if offset > 14*time.Hour {
		return 0, fmt.Errorf("utc offset %q out of range", raw)
	}
	return sign * offset, nil
}

var providerLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"20060102 15:04",
	"2006-01-02",
	"20060102",
}

// ParseProviderTime combines a date and an optional clock value given in the
// provider's local time and returns the UTC instant. Values that carry their
// own zone (RFC 3339) ignore offset. Empty input yields the zero time.
func ParseProviderTime(date, clock string, offset time.Duration) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, nil
	}
	value := date
	if clock != "" && !strings.ContainsAny(date, "T ") {
		value = date + " " + clock
	}

	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), nil
	}
	for _, layout := range providerLayouts[1:] {
		parsed, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		return parsed.Add(-offset).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised provider time %q", value)
}

// slug lowercases name and replaces every run of non-alphanumerics with "-".
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
