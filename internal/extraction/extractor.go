// Package extraction turns recognised invoice text into structured fields.
// Extraction is best-effort: fields that cannot be found are left nil.
package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/garyjia/invoice-booking/pkg/utils"
	"github.com/shopspring/decimal"
)

// Extract runs every field rule over text. It never fails and holds no
// state, so the same input always yields the same output.
func Extract(text string, confidence entity.ConfidenceScores) *entity.ExtractedData {
	data := &entity.ExtractedData{
		Confidence:      confidence.Clone(),
		FieldConfidence: make(map[string]float64),
	}
	raw := make(map[string]string)

	if v, ok := extractVendor(text); ok {
		data.VendorName = &v
		raw[entity.FieldVendorName] = v
	}
	if v, ok := extractInvoiceNumber(text); ok {
		data.InvoiceNumber = &v
		raw[entity.FieldInvoiceNumber] = v
	}
	if d, match := extractDate(text); d != nil {
		data.InvoiceDate = d
		raw[entity.FieldInvoiceDate] = match
	}
	if d, match, ok := firstAmount(text, totalAmountPatterns, nil); ok {
		data.TotalAmount = decimal.NewNullDecimal(d)
		raw[entity.FieldTotalAmount] = match
	}
	if d, match, ok := firstAmount(text, vatAmountPatterns, vatAmountExclusions); ok {
		data.VATAmount = decimal.NewNullDecimal(d)
		raw[entity.FieldVATAmount] = match
	}
	if d, match, ok := extractVATPercentage(text); ok {
		data.VATPercentage = decimal.NewNullDecimal(d)
		raw[entity.FieldVATPercentage] = match
	}
	if v, ok := extractIBAN(text); ok {
		data.IBAN = &v
		raw[entity.FieldIBAN] = v
	}
	if v, ok := extractDescription(text); ok {
		data.Description = &v
		raw[entity.FieldDescription] = v
	}

	for field, value := range raw {
		data.FieldConfidence[field] = fieldConfidence(value, confidence)
	}
	return data
}

func extractVendor(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	if len(lines) > vendorScanLines {
		lines = lines[:vendorScanLines]
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		upper := strings.ToUpper(trimmed)
		for _, marker := range vendorMarkers {
			if strings.Contains(upper, marker) {
				return trimmed, true
			}
		}
	}
	return "", false
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// extractInvoiceNumber returns the first labelled number, skipping matches
// that captured a label word instead of a value
func extractInvoiceNumber(text string) (string, bool) {
	for _, re := range invoiceNumberPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if !invoiceNumberStopWords[strings.ToLower(m[1])] {
				return m[1], true
			}
		}
	}
	return "", false
}

// firstAmount tries each pattern in order and returns the first match that
// parses. Matches directly preceded by one of the excluded words are skipped.
func firstAmount(text string, patterns []*regexp.Regexp, exclusions []string) (decimal.Decimal, string, bool) {
	for _, re := range patterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if precededBy(text[:loc[0]], exclusions) {
				continue
			}
			value := text[loc[2]:loc[3]]
			if d, ok := ParseAmount(value); ok {
				return d, value, true
			}
		}
	}
	return decimal.Decimal{}, "", false
}

func precededBy(prefix string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	tail := strings.ToLower(strings.TrimRight(prefix, " \t"))
	for _, w := range words {
		if !strings.HasSuffix(tail, w) {
			continue
		}
		// whole word only: "Parcel" must not count as "excl"
		head := tail[:len(tail)-len(w)]
		r, _ := utf8.DecodeLastRuneInString(head)
		if head == "" || !isAlnum(r) {
			return true
		}
	}
	return false
}

func extractVATPercentage(text string) (decimal.Decimal, string, bool) {
	for _, re := range vatPercentagePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if d, ok := parsePercentage(m[1]); ok {
				return d, m[1], true
			}
		}
	}
	return decimal.Decimal{}, "", false
}

// extractIBAN prefers the first candidate with a valid checksum, so a VAT
// registration number of the same shape does not shadow the real IBAN.
func extractIBAN(text string) (string, bool) {
	candidates := ibanPattern.FindAllString(text, -1)
	if len(candidates) == 0 {
		return "", false
	}
	for _, c := range candidates {
		if utils.IsValidIBAN(c) {
			return c, true
		}
	}
	return candidates[0], true
}

func extractDescription(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if utf8.RuneCountInString(trimmed) <= minDescriptionLength || isNumeric(trimmed) {
			continue
		}
		lower := strings.ToLower(trimmed)
		skip := false
		for _, w := range descriptionStopWords {
			if strings.Contains(lower, w) {
				skip = true
				break
			}
		}
		if !skip {
			return trimmed, true
		}
	}
	return "", false
}

// isNumeric treats digits with separators, signs and currency as numeric
func isNumeric(s string) bool {
	hasDigit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r), strings.ContainsRune(".,-/:+€%", r):
		default:
			return false
		}
	}
	return hasDigit
}

// fieldConfidence is the mean per-token confidence of the tokens in value,
// falling back to the overall score when none of them were scored
func fieldConfidence(value string, confidence entity.ConfidenceScores) float64 {
	var sum float64
	var n int
	for _, tok := range strings.Fields(value) {
		score, ok := confidence.PerToken[tok]
		if !ok {
			score, ok = confidence.PerToken[strings.Trim(tok, ".,:;")]
		}
		if ok {
			sum += score
			n++
		}
	}
	if n == 0 {
		return confidence.Overall
	}
	return sum / float64(n)
}
