package analytics

import (
	"strings"
	"time"
)

// dateLayouts covers the formats seen in provisioning exports. Day-first
// layouts are tried for slash and dash dates because the source systems are
// Indonesian.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// ParseDate parses an opaque source date. It reports false for blank or
// unrecognised values.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
