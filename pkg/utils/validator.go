package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var ibanShape = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{1,30}$`)

// NormalizeIBAN strips spaces and upper-cases an IBAN
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}

// ValidateIBAN checks the shape and the ISO 13616 mod-97 checksum
func ValidateIBAN(iban string) error {
	normalized := NormalizeIBAN(iban)
	if !ibanShape.MatchString(normalized) {
		return fmt.Errorf("invalid IBAN format: %s", iban)
	}

	// Move the country code and check digits to the end, then map letters to 10..35.
	rearranged := normalized[4:] + normalized[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			fmt.Fprintf(&digits, "%d", r-'A'+10)
			continue
		}
		digits.WriteRune(r)
	}

	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return fmt.Errorf("invalid IBAN format: %s", iban)
	}
	if new(big.Int).Mod(n, big.NewInt(97)).Int64() != 1 {
		return fmt.Errorf("invalid IBAN checksum: %s", iban)
	}
	return nil
}

// IsValidIBAN reports whether iban passes ValidateIBAN
func IsValidIBAN(iban string) bool {
	return ValidateIBAN(iban) == nil
}

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces a client-supplied filename to a safe base name
func SanitizeFilename(name string) string {
	name = SanitizeString(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document"
	}
	return name
}
