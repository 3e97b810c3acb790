package cast

import (
	"strings"
	"time"

	"github.com/simp-lee/goboot/internal/domain"
)

const dateLayout = "2006-01-02"

// isoLayouts are the ISO-8601 forms accepted for datetimes, tried in order.
// Layouts without an offset are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	dateLayout,
}

// ParseISO parses an ISO-8601 datetime string. A space is accepted in place
// of the 'T' separator.
func ParseISO(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if len(v) > 10 && v[10] == ' ' {
		v = v[:10] + "T" + v[11:]
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.InvalidValuef("invalid ISO-8601 datetime '%s'", s)
}

// ParseDate parses an ISO-8601 calendar date. A full datetime is also
// accepted and its date part, in its own offset, is kept. The result is
// midnight UTC.
func ParseDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, v); err == nil {
		return d, nil
	}
	t, err := ParseISO(v)
	if err != nil {
		return time.Time{}, domain.InvalidValuef("invalid ISO-8601 date '%s'", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ISOToUTC parses s and converts it to UTC with second precision.
func ISOToUTC(s string) (time.Time, error) {
	return ISOIn(s, time.UTC)
}

// ISOToLocal parses s and converts it to the local zone with second precision.
func ISOToLocal(s string) (time.Time, error) {
	return ISOIn(s, time.Local)
}

// ISOIn parses s and converts it to loc with second precision.
func ISOIn(s string, loc *time.Location) (time.Time, error) {
	t, err := ParseISO(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc).Truncate(time.Second), nil
}

// TimeToISO formats t as RFC 3339 in UTC with second precision.
func TimeToISO(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// DateToISO formats the calendar date of t.
func DateToISO(t time.Time) string {
	return t.Format(dateLayout)
}

// DiffMillis returns end-start in whole milliseconds.
func DiffMillis(start, end time.Time) int64 {
	return end.Sub(start).Milliseconds()
}
