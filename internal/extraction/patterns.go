package extraction

import "regexp"

// amountExpr captures a two-decimal money value, optionally thousands-grouped
// with either separator ("121,00", "1234.56", "1.234,56", "1,234.56").
const amountExpr = `(\d{1,3}(?:[.,]\d{3})+[.,]\d{2}|\d+[.,]\d{2})`

// currencyExpr is the optional currency marker between a label and its amount
const currencyExpr = `[ \t]*(?:€|EUR)?[ \t]*`

// percentExpr captures a percentage value without the sign
const percentExpr = `(\d{1,2}(?:[.,]\d{1,2})?)`

// vendorMarkers are legal-entity markers that identify the vendor line,
// matched as case-insensitive substrings
var vendorMarkers = []string{"B.V.", "N.V.", "BV", "NV", "LLC", "INC"}

// vendorScanLines is how many leading lines are searched for a vendor
const vendorScanLines = 5

// minDescriptionLength is the exclusive lower bound on description length
const minDescriptionLength = 10

// descriptionStopWords exclude header and totals lines from the description
var descriptionStopWords = []string{"total", "totaal", "btw", "vat", "factuur", "invoice"}

// invoiceNumberPatterns are tried in order; group 1 is the number.
// Both require a Factuur/Invoice label, the second in its "#" form.
var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:Factuur|Invoice)[ \t]*(?:nummer|number|nr\b\.?|no\b\.?)?[ \t]*[:=]?[ \t]*([A-Z0-9][A-Z0-9-]*)`),
	regexp.MustCompile(`(?i)\b(?:Factuur|Invoice)[ \t]*#[ \t]*([A-Z0-9][A-Z0-9-]*)`),
}

// invoiceNumberStopWords are label words that follow Factuur/Invoice but are
// never the number itself ("Invoice date", "Factuurdatum")
var invoiceNumberStopWords = map[string]bool{
	"date": true, "datum": true, "to": true, "aan": true,
}

// datePattern pairs a textual date shape with the layouts that may parse it
type datePattern struct {
	re      *regexp.Regexp
	layouts []string
	// textMonth marks "DD Month YYYY", parsed through monthNames instead of layouts
	textMonth bool
}

var datePatterns = []datePattern{
	{
		re:      regexp.MustCompile(`\b(\d{2}[-/]\d{2}[-/]\d{4})\b`),
		layouts: []string{"02-01-2006", "02/01/2006"},
	},
	{
		re:      regexp.MustCompile(`\b(\d{4}[-/]\d{2}[-/]\d{2})\b`),
		layouts: []string{"2006-01-02", "2006/01/02"},
	},
	{
		re:        regexp.MustCompile(`\b(\d{1,2})\s+([A-Za-z]+)\.?\s+(\d{4})\b`),
		textMonth: true,
	},
}

// totalAmountPatterns: a plain total label first, then the "incl. VAT" form
var totalAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:Totaal|Total)[ \t]*(?:bedrag|amount)?[ \t]*[:=]?` + currencyExpr + amountExpr),
	regexp.MustCompile(`(?i)\b(?:Totaal|Total)[ \t]*(?:incl\.?|inclusief|including)[ \t]*(?:BTW|VAT)[ \t]*[:=]?` + currencyExpr + amountExpr),
}

// vatAmountPatterns allow an inline rate such as "BTW 21%: 21,00"
var vatAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:BTW|VAT)[ \t]*(?:bedrag|amount)?[ \t]*(?:\(?[ \t]*\d{1,2}(?:[.,]\d{1,2})?[ \t]*%[ \t]*\)?)?[ \t]*[:=]?` + currencyExpr + amountExpr),
}

// vatAmountExclusions mark a VAT label that belongs to a total ("incl. BTW")
var vatAmountExclusions = []string{"incl", "incl.", "inclusief", "including", "excl", "excl.", "exclusief", "excluding"}

// vatPercentagePatterns: label then rate on one line, rate then label,
// and finally a bare rate on the line directly after a VAT label.
var vatPercentagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:BTW|VAT)[^\n%]*?\b` + percentExpr + `[ \t]*%`),
	regexp.MustCompile(`(?i)\b` + percentExpr + `[ \t]*%[ \t]*(?:BTW|VAT)\b`),
	regexp.MustCompile(`(?i)\b(?:BTW|VAT)[^\n]*\r?\n[ \t]*` + percentExpr + `[ \t]*%`),
}

// ibanPattern is case-sensitive: IBANs are printed upper-case
var ibanPattern = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{1,30}\b`)
