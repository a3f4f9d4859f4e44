// Package dateutil normalizes the heterogeneous date representations used
// across the plant data stores. Every successful parse collapses to UTC
// midnight of the resolved calendar day; the domain only keys by day, and
// midnight instants make equality checks reliable across sources.
package dateutil

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

// Spreadsheet serials count days from 1899-12-30. Serials strictly inside
// this window cover calendar days from 1970 to ~2064; anything outside is
// treated as a non-serial string rather than misparsed into a date.
const (
	serialEpochOffsetDays = 25569
	serialUpperBound      = 60000
)

var (
	ddmmyyyyPattern = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)
	ddmmmyyPattern  = regexp.MustCompile(`^(\d{1,2})-([A-Za-z]{3})-(\d{2})$`)

	monthsByAbbr = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}

	genericLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"2006/01/02",
	}
)

// Parse resolves a native timestamp, a spreadsheet serial, a "DD-MM-YYYY" or
// "DD-MMM-YY" string, or a generic ISO string into UTC midnight of the
// calendar day. Any time-of-day component is discarded.
func Parse(input interface{}) (time.Time, error) {
	switch v := input.(type) {
	case nil:
		return time.Time{}, ErrInvalidDate
	case time.Time:
		if v.IsZero() {
			return time.Time{}, ErrInvalidDate
		}
		return Normalize(v), nil
	case float64:
		return fromSerial(v)
	case int:
		return fromSerial(float64(v))
	case int64:
		return fromSerial(float64(v))
	case string:
		return ParseString(v)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, input)
	}
}

// ParseString applies the string formats in priority order: serial number,
// DD-MM-YYYY (or DD/MM/YYYY), DD-MMM-YY, then the generic ISO layouts.
func ParseString(raw string) (time.Time, error) {
	str := strings.TrimSpace(raw)
	if str == "" {
		return time.Time{}, ErrInvalidDate
	}

	if num, err := strconv.ParseFloat(str, 64); err == nil {
		if isSerial(num) {
			return fromSerial(num)
		}
	}

	if m := ddmmyyyyPattern.FindStringSubmatch(str); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if !IsValidDate(year, time.Month(month), day) {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
	}

	if m := ddmmmyyPattern.FindStringSubmatch(str); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := monthsByAbbr[strings.ToLower(m[2])]
		yy, _ := strconv.Atoi(m[3])
		year := 2000 + yy
		if !ok || !IsValidDate(year, month, day) {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
	}

	for _, layout := range genericLayouts {
		if parsed, err := time.Parse(layout, str); err == nil {
			return Normalize(parsed), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// Normalize truncates an instant to UTC midnight of its UTC calendar day.
func Normalize(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsValidDate reports whether year/month/day name a real calendar day.
// The date is constructed and its components re-extracted so that values
// like day 31 in a 30-day month are caught instead of rolling over.
func IsValidDate(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December {
		return false
	}
	if day < 1 || day > 31 {
		return false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	ty, tm, td := t.Date()
	return ty == year && tm == month && td == day
}

// DayRange returns the inclusive UTC bounds of the instant's calendar day,
// used to match instant-keyed collections that may carry time components.
func DayRange(t time.Time) (start, end time.Time) {
	start = Normalize(t)
	end = start.Add(24*time.Hour - time.Millisecond)
	return start, end
}

func isSerial(num float64) bool {
	return num == math.Trunc(num) && num > serialEpochOffsetDays && num < serialUpperBound
}

func fromSerial(num float64) (time.Time, error) {
	if !isSerial(num) {
		return time.Time{}, fmt.Errorf("%w: %v is not a spreadsheet serial", ErrInvalidDate, num)
	}
	epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	return Normalize(epoch.AddDate(0, 0, int(num))), nil
}

// FormatISO renders YYYY-MM-DD, the storage and API format.
func FormatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// FormatDDMMYYYY renders the display format string-keyed stores match by.
func FormatDDMMYYYY(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("02-01-2006")
}

// FormatDDMMMYY renders e.g. "15-Jan-25", the weather feed's native format.
func FormatDDMMMYY(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("02-Jan-06")
}

// MonthName returns the full English month name, or "" for a zero time.
func MonthName(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Month().String()
}

// MonthNumber returns the 1-12 month, or 0 for a zero time.
func MonthNumber(t time.Time) int {
	if t.IsZero() {
		return 0
	}
	return int(t.UTC().Month())
}
