package extraction

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a printed money value to an exact decimal.
//
// When both '.' and ',' occur, the one that appears last is the decimal
// separator and the other groups thousands. A single separator kind that
// occurs once is the decimal separator; one that occurs more than once must
// group digits in threes and is then read as a thousands separator.
// Anything else is malformed and reported as not ok.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(strings.TrimSpace(s), "EUR")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	normalized, ok := normalizeSeparators(s)
	if !ok {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

func normalizeSeparators(s string) (string, bool) {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return "", false
		}
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot < 0 && lastComma < 0:
		return s, true
	case lastDot >= 0 && lastComma >= 0:
		decimalSep, groupSep := ".", ","
		if lastComma > lastDot {
			decimalSep, groupSep = ",", "."
		}
		idx := strings.LastIndex(s, decimalSep)
		intPart, frac := s[:idx], s[idx+1:]
		if strings.Contains(intPart, decimalSep) || !validGrouping(intPart, groupSep) || !allDigits(frac) {
			return "", false
		}
		return strings.ReplaceAll(intPart, groupSep, "") + "." + frac, true
	default:
		sep := "."
		if lastComma >= 0 {
			sep = ","
		}
		if strings.Count(s, sep) == 1 {
			parts := strings.SplitN(s, sep, 2)
			if !allDigits(parts[0]) || !allDigits(parts[1]) {
				return "", false
			}
			return parts[0] + "." + parts[1], true
		}
		if !validGrouping(s, sep) {
			return "", false
		}
		return strings.ReplaceAll(s, sep, ""), true
	}
}

// validGrouping reports whether s is 1-3 leading digits followed by
// sep-separated groups of exactly three digits
func validGrouping(s, sep string) bool {
	groups := strings.Split(s, sep)
	if len(groups[0]) == 0 || len(groups[0]) > 3 && len(groups) > 1 || !allDigits(groups[0]) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !allDigits(g) {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parsePercentage reads "21", "21%" or "5,5" as an exact decimal in 0..100
func parsePercentage(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	s = strings.Replace(s, ",", ".", 1)
	if !allDigits(strings.Replace(s, ".", "", 1)) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Decimal{}, false
	}
	return d, true
}
