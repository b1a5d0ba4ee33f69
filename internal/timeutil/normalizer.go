// Package timeutil parses upstream ISO-8601 timestamps into zoned times.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DefaultOffset is the display offset applied when none is configured
const DefaultOffset = 2 * time.Hour

// Timestamps without a zone are read as UTC. Fractional seconds of any precision are accepted.
var layouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Normalizer converts upstream timestamps to a fixed display offset.
// The instant is preserved; only the wall clock moves by Offset.
type Normalizer struct {
	zone   *time.Location
	offset time.Duration
}

// NewNormalizer creates a normalizer for the given offset from UTC
func NewNormalizer(offset time.Duration) *Normalizer {
	return &Normalizer{
		zone:   time.FixedZone(zoneName(offset), int(offset/time.Second)),
		offset: offset,
	}
}

func zoneName(offset time.Duration) string {
	if offset == 0 {
		return "UTC"
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return fmt.Sprintf("UTC%s%02d:%02d", sign, h, m)
}

// Offset returns the configured offset
func (n *Normalizer) Offset() time.Duration {
	return n.offset
}

// Location returns the fixed zone results are expressed in
func (n *Normalizer) Location() *time.Location {
	return n.zone
}

// Parse reads "YYYY-MM-DDTHH:MM:SS[.fraction][Z]" as UTC, or any RFC 3339
// timestamp with an explicit offset, and returns it in the display zone.
func (n *Normalizer) Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	trimmed := strings.TrimSuffix(s, "Z")
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t.In(n.zone), nil
		}
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(n.zone), nil
	}

	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

// ParseOffset reads offsets like "2h", "-30m" or "+05:30"
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultOffset, nil
	}
	if d, err := time.ParseDuration(strings.TrimPrefix(s, "+")); err == nil {
		return d, nil
	}

	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return sign * (time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

// StartOfDayUTC returns midnight UTC of t's UTC calendar day
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
