package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is the zone DropCountr reports wall-clock times in
const DefaultTimezone = "America/Los_Angeles"

// APITimeLayout is the timestamp layout the API accepts in queries
const APITimeLayout = "2006-01-02T15:04:05.000Z"

// ValidationError reports a field that failed validation
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an API timestamp.
// A trailing "Z" is not UTC: the API writes local wall-clock time with a Z
// suffix, so the time is read in loc. Explicit offsets are honored and the
// result is converted into loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: "timestamp", Reason: "empty"}
	}

	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		if t, ok := parseLocal(s[:len(s)-1], loc); ok {
			return t, nil
		}
		return time.Time{}, &ValidationError{Field: "timestamp", Value: s, Reason: "not an ISO-8601 datetime"}
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	if t, ok := parseLocal(s, loc); ok {
		return t, nil
	}
	return time.Time{}, &ValidationError{Field: "timestamp", Value: s, Reason: "not an ISO-8601 datetime"}
}

func parseLocal(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDuring splits a "start/end" interval and parses both ends
func ParseDuring(during string, loc *time.Location) (time.Time, time.Time, error) {
	parts := strings.Split(during, "/")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, &ValidationError{Field: "during", Value: during, Reason: "expected start/end"}
	}

	start, err := ParseTimestamp(parts[0], loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("during start: %w", err)
	}
	end, err := ParseTimestamp(parts[1], loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("during end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "during", Value: during, Reason: "end before start"}
	}
	return start, end, nil
}

// FormatAPITime renders t as wall-clock time in loc with the API's Z suffix
func FormatAPITime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(APITimeLayout)
}

// ParseDateBound parses a query bound given as YYYY-MM-DD or a full datetime.
// A bare date resolves to the start of the day, or to 23:59:59 when endOfDay is set.
func ParseDateBound(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		if endOfDay {
			return EndOfDay(d), nil
		}
		return d, nil
	}
	return ParseTimestamp(s, loc)
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of t's day in its own location
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
