package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Administration is a company scope within the accounting system
type Administration struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GLAccount is a general-ledger account
type GLAccount struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
}

// VATCode is a VAT code known to an administration
type VATCode struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Percentage  decimal.Decimal `json:"percentage"`
}

// GLBalance is the start balance of one GL account
type GLBalance struct {
	GLAccountCode string          `json:"gl_account_code"`
	Amount        decimal.Decimal `json:"amount"`
}

// TransactionDetail describes a booked transaction
type TransactionDetail struct {
	ID          string        `json:"id"`
	Date        time.Time     `json:"date"`
	Description string        `json:"description"`
	DocumentID  string        `json:"document_id,omitempty"`
	Lines       []BookingLine `json:"lines"`
}

// DocumentSummary is a document found in the accounting system's archive
type DocumentSummary struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Reference string    `json:"reference,omitempty"`
	BookingID string    `json:"booking_id,omitempty"`
	Date      time.Time `json:"date"`
}

// Contact is a customer or supplier
type Contact struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VATNumber string `json:"vat_number,omitempty"`
	IBAN      string `json:"iban,omitempty"`
}

// BinaryDocument is the file content of an archived document
type BinaryDocument struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Content  []byte `json:"content"`
}
