package aggregator

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts lists the formats seen across platform responses, most common first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700", // Graph API
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"1/2/2006, 3:04:05 PM",
	"1/2/2006",
	"2/1/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// NormalizeDate converts any platform date into UTC. Unix timestamps in
// seconds or milliseconds are accepted. Unparseable input yields the zero time.
func NormalizeDate(raw string) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NormalizeUnix(n)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// NormalizeUnix converts a unix timestamp, in seconds or milliseconds, into UTC.
func NormalizeUnix(n int64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
