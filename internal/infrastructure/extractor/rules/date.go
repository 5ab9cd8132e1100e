package rules

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type DateOrder string

const (
	DayFirst   DateOrder = "dmy"
	MonthFirst DateOrder = "mdy"
)

var (
	isoDatePattern     = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})\b`)
	namedDatePattern   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:\s+de)?\s+([a-záéíóúñ]+)\.?(?:\s+de(?:l)?)?,?\s+(\d{4})\b`)
	namedDateUSPattern = regexp.MustCompile(`(?i)\b([a-z]+)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
)

var monthNames = map[string]time.Month{
	"enero": time.January, "ene": time.January, "january": time.January, "jan": time.January,
	"febrero": time.February, "feb": time.February, "february": time.February,
	"marzo": time.March, "mar": time.March, "march": time.March,
	"abril": time.April, "abr": time.April, "april": time.April, "apr": time.April,
	"mayo": time.May, "may": time.May,
	"junio": time.June, "jun": time.June, "june": time.June,
	"julio": time.July, "jul": time.July, "july": time.July,
	"agosto": time.August, "ago": time.August, "august": time.August, "aug": time.August,
	"septiembre": time.September, "setiembre": time.September, "sep": time.September, "sept": time.September, "september": time.September,
	"octubre": time.October, "oct": time.October, "october": time.October,
	"noviembre": time.November, "nov": time.November, "november": time.November,
	"diciembre": time.December, "dic": time.December, "december": time.December, "dec": time.December,
}

// ParseDate parses a single date value, e.g. an XML element body.
func ParseDate(raw string, order DateOrder) Field[time.Time] {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Missing[time.Time]()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Found(truncateDay(t))
		}
	}
	return FindDate(s, order)
}

// FindDate returns the first date-like token in free text.
func FindDate(text string, order DateOrder) Field[time.Time] {
	type candidate struct {
		at int
		t  time.Time
	}
	var best *candidate
	consider := func(at int, t time.Time, ok bool) {
		if !ok {
			return
		}
		if best == nil || at < best.at {
			best = &candidate{at: at, t: t}
		}
	}

	if m := isoDatePattern.FindStringSubmatchIndex(text); m != nil {
		y, mo, d := atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), atoi(text[m[6]:m[7]])
		t, ok := buildDate(y, mo, d)
		consider(m[0], t, ok)
	}
	if m := numericDatePattern.FindStringSubmatchIndex(text); m != nil {
		a, b, y := atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), atoi(text[m[6]:m[7]])
		if y < 100 {
			y += 2000
		}
		d, mo := a, b
		if order == MonthFirst {
			d, mo = b, a
		}
		t, ok := buildDate(y, mo, d)
		if !ok {
			// the other order may still be a valid calendar date, e.g. 03/25/2024
			t, ok = buildDate(y, d, mo)
		}
		consider(m[0], t, ok)
	}
	if m := namedDatePattern.FindStringSubmatchIndex(text); m != nil {
		if mo, ok := monthNames[strings.ToLower(text[m[4]:m[5]])]; ok {
			t, ok := buildDate(atoi(text[m[6]:m[7]]), int(mo), atoi(text[m[2]:m[3]]))
			consider(m[0], t, ok)
		}
	}
	if m := namedDateUSPattern.FindStringSubmatchIndex(text); m != nil {
		if mo, ok := monthNames[strings.ToLower(text[m[2]:m[3]])]; ok {
			t, ok := buildDate(atoi(text[m[6]:m[7]]), int(mo), atoi(text[m[4]:m[5]]))
			consider(m[0], t, ok)
		}
	}

	if best == nil {
		return Missing[time.Time]()
	}
	return Found(best.t)
}

func buildDate(year, month, day int) (time.Time, bool) {
	if year < 1900 || year > 2200 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
