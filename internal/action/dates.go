package action

import (
	"strings"
	"time"
)

// CanonicalLayout is how normalized timestamps are rendered and stored
const CanonicalLayout = "2006-01-02 15:04:05"

// DefaultTaskOffset schedules undated tasks a little in the future
const DefaultTaskOffset = 10 * time.Minute

// dateLayouts are tried in order; the first successful parse wins.
// Month, day and hour accept one or two digits.
var dateLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04",
	time.RFC3339,
}

// DateNormalizer turns loosely formatted model dates into concrete times
type DateNormalizer struct {
	offset   time.Duration
	location *time.Location
	now      func() time.Time
}

// NewDateNormalizer creates a normalizer. A nil location means time.Local;
// a negative offset is treated as zero.
func NewDateNormalizer(offset time.Duration, location *time.Location) *DateNormalizer {
	if location == nil {
		location = time.Local
	}
	if offset < 0 {
		offset = 0
	}
	return &DateNormalizer{
		offset:   offset,
		location: location,
		now:      time.Now,
	}
}

// Normalize parses s with the known layouts. Empty or unparseable input
// yields now plus the configured offset, so the result is always usable.
func (n *DateNormalizer) Normalize(s string) time.Time {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, n.location); err == nil {
				return t
			}
		}
	}
	return n.now().In(n.location).Add(n.offset).Truncate(time.Second)
}

// Format renders t in the canonical layout, in the normalizer's location
func (n *DateNormalizer) Format(t time.Time) string {
	return t.In(n.location).Format(CanonicalLayout)
}

// Location is the zone dates are parsed and rendered in
func (n *DateNormalizer) Location() *time.Location {
	return n.location
}
