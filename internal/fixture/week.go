package fixture

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	weekPrefixPattern = regexp.MustCompile(`^(\d+)\s*\(`)
	digitsPattern     = regexp.MustCompile(`\d+`)
	weekRangePattern  = regexp.MustCompile(`\((\d{1,2})\.(\d{1,2})\.(\d{4})\s*-\s*(\d{1,2})\.(\d{1,2})\.(\d{4})\)`)
	shortDatePattern  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	fullDatePattern   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
)

// ParseWeek reduces a week label to its bare ordinal.
//
//	"5 (12.09.2024 - 15.09.2024)" -> "5"
//	"12"                          -> "12"
//	"Week 3"                      -> "3"
//
// The leading "digits then parenthesis" form is tried first so a day number
// inside the date range is never mistaken for the week. Labels without any
// digits come back unchanged.
func ParseWeek(label string) string {
	if m := weekPrefixPattern.FindStringSubmatch(label); m != nil {
		return m[1]
	}
	if m := digitsPattern.FindString(label); m != "" {
		return m
	}
	return label
}

// WeekOrdinal returns the numeric week of a label, if it has one.
func WeekOrdinal(label string) (int, bool) {
	n, err := strconv.Atoi(ParseWeek(label))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ResolveDate completes a "DD/MM" fixture date with the year taken from the
// date range embedded in a composite week label such as
// "17 (28.12.2024 - 2.01.2025)". The result is "DD/MM/YYYY".
//
// A month equal to the range's start month takes the start year and one
// equal to the end month takes the end year. Any other month inside a range
// that spans two years is assigned by position: December or a month at or
// after the start month belongs to the start year, the rest to the end year.
// Dates that already carry a year, and labels without a range, are returned
// unchanged.
func ResolveDate(weekLabel, date string) string {
	if weekLabel == "" || date == "" {
		return date
	}
	if fullDatePattern.MatchString(date) {
		return date
	}

	rng := weekRangePattern.FindStringSubmatch(weekLabel)
	if rng == nil {
		return date
	}
	dm := shortDatePattern.FindStringSubmatch(date)
	if dm == nil {
		return date
	}

	day, _ := strconv.Atoi(dm[1])
	month, _ := strconv.Atoi(dm[2])
	startMonth, _ := strconv.Atoi(rng[2])
	startYear := rng[3]
	endMonth, _ := strconv.Atoi(rng[5])
	endYear := rng[6]

	var year string
	switch {
	case month == startMonth:
		year = startYear
	case month == endMonth:
		year = endYear
	case startYear != endYear:
		if month == 12 || month >= startMonth {
			year = startYear
		} else {
			year = endYear
		}
	default:
		year = startYear
	}

	return fmt.Sprintf("%02d/%02d/%s", day, month, year)
}

// weekOrder sorts week labels: labels without an ordinal first, then by
// ordinal, ties broken by the raw label.
type weekOrder struct {
	class int
	num   int
	raw   string
}

func orderOfWeek(label string) weekOrder {
	if n, ok := WeekOrdinal(label); ok {
		return weekOrder{class: 1, num: n, raw: label}
	}
	return weekOrder{class: 0, num: -1, raw: label}
}

func (a weekOrder) less(b weekOrder) bool {
	if a.class != b.class {
		return a.class < b.class
	}
	if a.num != b.num {
		return a.num < b.num
	}
	return a.raw < b.raw
}

// WeekLess orders two week labels by ordinal. Labels without an ordinal sort
// before numbered ones; equal ordinals fall back to the raw label.
func WeekLess(a, b string) bool {
	return orderOfWeek(a).less(orderOfWeek(b))
}

// DateSortKey maps "DD/MM/YYYY" dates to "YYYYMMDD" so they sort
// chronologically. Other shapes sort by their raw text.
func DateSortKey(date string) string {
	m := fullDatePattern.FindStringSubmatch(date)
	if m == nil {
		return date
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%s%02d%02d", m[3], month, day)
}
