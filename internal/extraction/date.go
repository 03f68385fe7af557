package extraction

import (
	"strconv"
	"strings"
	"time"
)

// monthNames maps English and Dutch month names and abbreviations
var monthNames = map[string]time.Month{
	"january": time.January, "januari": time.January, "jan": time.January,
	"february": time.February, "februari": time.February, "feb": time.February,
	"march": time.March, "maart": time.March, "mar": time.March, "mrt": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May, "mei": time.May,
	"june": time.June, "juni": time.June, "jun": time.June,
	"july": time.July, "juli": time.July, "jul": time.July,
	"august": time.August, "augustus": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oktober": time.October, "oct": time.October, "okt": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

func extractDate(text string) (*time.Time, string) {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if p.textMonth {
			if t, ok := parseTextMonth(m[1], m[2], m[3]); ok {
				return &t, m[0]
			}
			continue
		}
		for _, layout := range p.layouts {
			if t, err := time.Parse(layout, m[1]); err == nil {
				return &t, m[0]
			}
		}
	}
	return nil, ""
}

func parseTextMonth(day, month, year string) (time.Time, bool) {
	mon, ok := monthNames[strings.ToLower(month)]
	if !ok {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	t := time.Date(y, mon, d, 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow such as 31 February
	if t.Day() != d || t.Month() != mon {
		return time.Time{}, false
	}
	return t, true
}
