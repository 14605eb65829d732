// Package timestamp normalizes raw timestamp strings into instants.
// Resolution tries each configured layout in catalog order, then falls
// back to a permissive parser covering common ISO and legacy shapes.
package timestamp

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrUnresolved is returned when no configured layout and no fallback
// shape matches the input.
var ErrUnresolved = errors.New("timestamp: unresolved")

// Fallback layouts tried after the configured ones, ordered by likelihood.
var fallbackLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05,000",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"02/01/2006 15:04:05",
	"02/Jan/2006:15:04:05 -0700",
	"Jan _2 15:04:05",
	"Jan _2 15:04:05 2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC3339Nano,
	time.ANSIC,
	time.UnixDate,
}

// Resolver resolves raw timestamp strings against an ordered list of
// layouts. It is immutable after construction and safe for concurrent
// use.
type Resolver struct {
	layouts []string
}

// NewResolver creates a resolver with the given configured layouts,
// tried in order before the permissive fallback.
func NewResolver(layouts []string) *Resolver {
	return &Resolver{layouts: layouts}
}

// Resolve parses raw into an instant. The first successful configured
// layout wins; otherwise the fallback parser is consulted. Failure
// never carries partial results.
func (r *Resolver) Resolve(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrUnresolved
	}

	for _, layout := range r.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return resolveFlexible(s)
}

// resolveFlexible is the catch-all: the fallback layout table plus
// numeric epoch values (seconds, millis or nanos, picked by magnitude).
func resolveFlexible(s string) (time.Time, error) {
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if isNumeric(s) {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(v), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			sec := int64(f)
			nsec := int64((f - float64(sec)) * 1e9)
			return time.Unix(sec, nsec).UTC(), nil
		}
	}

	return time.Time{}, ErrUnresolved
}

// fromEpoch interprets an integer as seconds, milliseconds or
// nanoseconds since the Unix epoch depending on its magnitude.
func fromEpoch(v int64) time.Time {
	switch {
	case v >= 1e18:
		return time.Unix(0, v).UTC()
	case v >= 1e12:
		return time.UnixMilli(v).UTC()
	default:
		return time.Unix(v, 0).UTC()
	}
}

func isNumeric(s string) bool {
	dots := 0
	for i, c := range s {
		if c >= '0' && c <= '9' {
			continue
		}
		if c == '.' && dots == 0 {
			dots++
			continue
		}
		if c == '-' && i == 0 {
			continue
		}
		return false
	}
	return len(s) > 0
}
