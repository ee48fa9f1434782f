// Package period parses and orders the reporting periods that scope every
// load. A period is always a calendar month; publications that report
// quarterly still stamp their files with the quarter-end month.
package period

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Period is one reporting month. The zero value is invalid.
type Period struct {
	Year  int
	Month time.Month
}

// String renders the canonical YYYY-MM form used as the period key in
// loaded tables and load history.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Year == 0 }

// Before orders periods chronologically.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// Add returns the period n months later (or earlier for negative n).
func (p Period) Add(n int) Period {
	t := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	numericPeriodRe = regexp.MustCompile(`(19|20)\d{2}[-_/ ]?(0[1-9]|1[0-2])`)
	namedPeriodRe   = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)[-_ ]*((?:19|20)\d{2})\b`)
)

// Parse extracts a period from an explicit label such as "2024-03" or
// "March 2024". It fails on strings with no recognisable period; use
// FromFilename for fuzzier scanning.
func Parse(s string) (Period, error) {
	p, ok := scan(strings.TrimSpace(s))
	if !ok {
		return Period{}, fmt.Errorf("no reporting period in %q", s)
	}
	return p, nil
}

// FromFilename scans a file name or URL fragment for an embedded period.
// Month-name forms are preferred over bare digit runs, which frequently
// collide with version numbers.
func FromFilename(name string) (Period, bool) {
	return scan(name)
}

func scan(s string) (Period, bool) {
	if m := namedPeriodRe.FindStringSubmatch(s); m != nil {
		month, ok := monthNames[strings.ToLower(m[1])]
		if ok {
			year, _ := strconv.Atoi(m[2])
			return Period{Year: year, Month: month}, true
		}
	}
	if m := numericPeriodRe.FindString(s); m != "" {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m)
		year, _ := strconv.Atoi(digits[:4])
		month, _ := strconv.Atoi(digits[4:])
		return Period{Year: year, Month: time.Month(month)}, true
	}
	return Period{}, false
}

// Sort orders periods chronologically in place.
func Sort(ps []Period) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Before(ps[j]) })
}

// Latest returns the most recent of the given periods, or the zero Period
// when the slice is empty.
func Latest(ps []Period) Period {
	var latest Period
	for _, p := range ps {
		if latest.IsZero() || latest.Before(p) {
			latest = p
		}
	}
	return latest
}
