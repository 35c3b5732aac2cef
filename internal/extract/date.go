package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Calendar selects how purely numeric dates are read.
type Calendar string

const (
	CalendarGregorian Calendar = "gregorian"
	CalendarEthiopian Calendar = "ethiopian"
)

// ParseCalendar maps a config value to a Calendar, defaulting to Gregorian.
func ParseCalendar(s string) Calendar {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ethiopian", "ec", "et":
		return CalendarEthiopian
	default:
		return CalendarGregorian
	}
}

const (
	isoLayout = "2006-01-02"
	minYear   = 1900
	maxYear   = 2100
)

// Tried in order; day-first numeric forms come before the US month-first form.
var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 January, 2006",
	"2 Jan 2006",
	"2 Jan, 2006",
}

var (
	reOrdinal     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\b`)
	reSept        = regexp.MustCompile(`(?i)\bsept\b`)
	reMonthDot    = regexp.MustCompile(`(?i)\b([a-z]{3,9})\.`)
	reNumericDate = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})$`)
)

func cleanDate(s string) string {
	s = collapseSpace(s)
	s = reOrdinal.ReplaceAllString(s, "$1")
	s = reSept.ReplaceAllString(s, "Sep")
	s = reMonthDot.ReplaceAllString(s, "$1")
	return strings.TrimRight(s, ".,; ")
}

func plausible(t time.Time) bool {
	return t.Year() >= minYear && t.Year() <= maxYear
}

// normalizeGregorianDate parses s with the accepted layouts and renders ISO.
func normalizeGregorianDate(s string) (string, bool) {
	s = cleanDate(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if !plausible(t) {
			return "", false
		}
		return t.Format(isoLayout), true
	}
	return "", false
}

// normalizeEthiopianDate reads DD/MM/YYYY as an Ethiopian calendar date and
// renders the Gregorian ISO equivalent. Other forms fall back to Gregorian.
func normalizeEthiopianDate(s string) (string, bool) {
	c := cleanDate(s)
	m := reNumericDate.FindStringSubmatch(c)
	if m == nil {
		return normalizeGregorianDate(s)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	t, ok := EthiopianToGregorian(year, month, day)
	if !ok || !plausible(t) {
		return "", false
	}
	return t.Format(isoLayout), true
}

const ethiopicEpochJDN = 1724220

var jdn2000 = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const jdnOf2000 = 2451545

// EthiopianToGregorian converts an Ethiopian calendar date. Months 1-12 have
// 30 days; month 13 (Pagume) has 5, or 6 when year%4 == 3.
func EthiopianToGregorian(year, month, day int) (time.Time, bool) {
	if year < 1 || month < 1 || month > 13 || day < 1 || day > 30 {
		return time.Time{}, false
	}
	if month == 13 {
		limit := 5
		if year%4 == 3 {
			limit = 6
		}
		if day > limit {
			return time.Time{}, false
		}
	}
	jdn := ethiopicEpochJDN + 365*(year-1) + year/4 + 30*(month-1) + day
	return jdn2000.AddDate(0, 0, jdn-jdnOf2000), true
}
