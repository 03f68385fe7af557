package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedData is the structured result of pattern extraction.
// Every field is independently nullable; a null field is the degradation signal.
type ExtractedData struct {
	VendorName    *string             `json:"vendor_name"`
	InvoiceNumber *string             `json:"invoice_number"`
	InvoiceDate   *time.Time          `json:"invoice_date"`
	TotalAmount   decimal.NullDecimal `json:"total_amount"`
	VATAmount     decimal.NullDecimal `json:"vat_amount"`
	VATPercentage decimal.NullDecimal `json:"vat_percentage"`
	IBAN          *string             `json:"iban"`
	Description   *string             `json:"description"`

	// Confidence is the recognition confidence the fields were derived from
	Confidence ConfidenceScores `json:"confidence_scores"`

	// FieldConfidence holds a 0-100 score per populated field
	FieldConfidence map[string]float64 `json:"field_confidence,omitempty"`
}

// Field names used as FieldConfidence keys and validation payload keys
const (
	FieldVendorName    = "vendor_name"
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldTotalAmount   = "total_amount"
	FieldVATAmount     = "vat_amount"
	FieldVATPercentage = "vat_percentage"
	FieldIBAN          = "iban"
	FieldDescription   = "description"
)

// Clone returns a deep copy
func (e *ExtractedData) Clone() *ExtractedData {
	if e == nil {
		return nil
	}
	cp := *e
	cp.VendorName = cloneString(e.VendorName)
	cp.InvoiceNumber = cloneString(e.InvoiceNumber)
	cp.IBAN = cloneString(e.IBAN)
	cp.Description = cloneString(e.Description)
	if e.InvoiceDate != nil {
		t := *e.InvoiceDate
		cp.InvoiceDate = &t
	}
	cp.Confidence = e.Confidence.Clone()
	if e.FieldConfidence != nil {
		cp.FieldConfidence = make(map[string]float64, len(e.FieldConfidence))
		for k, v := range e.FieldConfidence {
			cp.FieldConfidence[k] = v
		}
	}
	return &cp
}

// HasVAT reports whether a non-zero VAT amount is known
func (e *ExtractedData) HasVAT() bool {
	return e != nil && e.VATAmount.Valid && !e.VATAmount.Decimal.IsZero()
}

// PageConfidence is the confidence block reported for one recognised page
type PageConfidence struct {
	Overall  float64            `json:"overall"`
	PerToken map[string]float64 `json:"per_token,omitempty"`
}

// ConfidenceScores is the document-level confidence structure
type ConfidenceScores struct {
	Overall  float64                `json:"overall"`
	PerToken map[string]float64     `json:"per_token,omitempty"`
	PerPage  map[int]PageConfidence `json:"per_page,omitempty"`
}

// Clone returns a deep copy
func (c ConfidenceScores) Clone() ConfidenceScores {
	cp := ConfidenceScores{Overall: c.Overall}
	if c.PerToken != nil {
		cp.PerToken = make(map[string]float64, len(c.PerToken))
		for k, v := range c.PerToken {
			cp.PerToken[k] = v
		}
	}
	if c.PerPage != nil {
		cp.PerPage = make(map[int]PageConfidence, len(c.PerPage))
		for k, v := range c.PerPage {
			page := PageConfidence{Overall: v.Overall}
			if v.PerToken != nil {
				page.PerToken = make(map[string]float64, len(v.PerToken))
				for tk, tv := range v.PerToken {
					page.PerToken[tk] = tv
				}
			}
			cp.PerPage[k] = page
		}
	}
	return cp
}
