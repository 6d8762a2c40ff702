package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the zone-less query format, e.g. 2020-06-14-10.00.00.
const DateLayout = "2006-01-02-15.04.05"

var reID = regexp.MustCompile(`^[0-9]{1,18}$`)

// ID parses a positive numeric identifier (product/brand ids).
func ID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !reID.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Instant parses a query timestamp. DateLayout values are read in loc;
// RFC 3339 values keep their own offset.
func Instant(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 40 {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
