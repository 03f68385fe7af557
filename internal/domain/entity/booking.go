package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingLine is one line of a booking posted to the accounting system
type BookingLine struct {
	GLAccountCode string          `json:"gl_account_code"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	VATCode       string          `json:"vat_code,omitempty"`
	VATPercentage decimal.Decimal `json:"vat_percentage"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
}

// BookingTransaction is the request for one booking; it holds a principal line and at most one VAT line
type BookingTransaction struct {
	AdministrationID string        `json:"administration_id"`
	DocumentID       string        `json:"document_id"`
	Date             time.Time     `json:"date"`
	Description      string        `json:"description"`
	Reference        string        `json:"reference"`
	Lines            []BookingLine `json:"lines"`
}
