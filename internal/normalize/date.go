package normalize

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// ISODate is the wire layout of normalized dates.
const ISODate = "2006-01-02"

// serialEpoch is spreadsheet day 0, already shifted two days back for the
// 1900 leap-year bug.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	serialRe  = regexp.MustCompile(`^\d{1,5}(\.\d+)?$`)
	compactRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	isoRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	dmyRe     = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
)

var freeFormLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02.01.2006",
	"2-Jan-2006",
	"2-Jan-06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon, 02 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDate converts a raw cell or attribute into a calendar date at UTC
// midnight. Values that match no known form fall back to today's date; ok is
// false in that case so callers can log the substitution.
func ParseDate(v any, now time.Time) (d time.Time, ok bool) {
	switch t := v.(type) {
	case float64:
		return fromSerial(t), true
	case int:
		return fromSerial(float64(t)), true
	case int64:
		return fromSerial(float64(t)), true
	case time.Time:
		return truncate(t), true
	}

	s := String(v)
	if s == "" {
		return truncate(now), false
	}

	if serialRe.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return fromSerial(f), true
		}
	}
	if m := compactRe.FindStringSubmatch(s); m != nil {
		if d, ok := civil(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := isoRe.FindStringSubmatch(s); m != nil {
		if d, ok := civil(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := dmyRe.FindStringSubmatch(s); m != nil {
		if d, ok := civil(m[3], m[2], m[1]); ok {
			return d, true
		}
	}
	for _, layout := range freeFormLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncate(t), true
		}
	}
	return truncate(now), false
}

// Date is ParseDate rendered as YYYY-MM-DD.
func Date(v any, now time.Time) string {
	d, _ := ParseDate(v, now)
	return d.Format(ISODate)
}

func fromSerial(serial float64) time.Time {
	days := math.Floor(serial)
	return serialEpoch.AddDate(0, 0, int(days))
}

func civil(y, m, d string) (time.Time, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, so 31/02 comes back as March
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
