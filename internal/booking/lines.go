package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Options carries the per-booking accounting choices
type Options struct {
	AdministrationID string
	DocumentID       string
	ContentHash      string
	GLAccount        string
	VATGLAccount     string
	VATCode          string
}

// BuildTransaction turns booking input into a transaction with one principal
// line and, when a non-zero VAT amount is known, one VAT counter-entry line.
// now is used as the booking date when the invoice date is unknown.
func BuildTransaction(data *entity.ExtractedData, externalDocumentID string, opts Options, now time.Time) (*entity.BookingTransaction, error) {
	const op = "build booking"

	if data == nil || !data.TotalAmount.Valid {
		return nil, apperr.New(apperr.InvalidInput, op, "total amount is required")
	}
	if opts.GLAccount == "" {
		return nil, apperr.New(apperr.InvalidInput, op, "GL account is required")
	}
	if data.HasVAT() && opts.VATGLAccount == "" {
		return nil, apperr.New(apperr.InvalidInput, op, "VAT GL account is required when VAT is present")
	}

	description := describe(data)
	date := now
	if data.InvoiceDate != nil {
		date = *data.InvoiceDate
	}

	principal := entity.BookingLine{
		GLAccountCode: opts.GLAccount,
		Description:   description,
		Amount:        data.TotalAmount.Decimal,
		VATCode:       opts.VATCode,
		VATPercentage: orZero(data.VATPercentage),
		VATAmount:     orZero(data.VATAmount),
	}
	lines := []entity.BookingLine{principal}

	if data.HasVAT() {
		label := "VAT"
		if data.VATPercentage.Valid {
			label = fmt.Sprintf("VAT %s%%", data.VATPercentage.Decimal.String())
		}
		lines = append(lines, entity.BookingLine{
			GLAccountCode: opts.VATGLAccount,
			Description:   label,
			Amount:        data.VATAmount.Decimal,
			VATCode:       opts.VATCode,
			VATPercentage: decimal.Zero,
			VATAmount:     decimal.Zero,
		})
	}

	return &entity.BookingTransaction{
		AdministrationID: opts.AdministrationID,
		DocumentID:       externalDocumentID,
		Date:             date,
		Description:      description,
		Reference:        IdempotencyKey(opts.DocumentID, opts.ContentHash),
		Lines:            lines,
	}, nil
}

func describe(data *entity.ExtractedData) string {
	if data.Description != nil && strings.TrimSpace(*data.Description) != "" {
		return strings.TrimSpace(*data.Description)
	}
	parts := make([]string, 0, 2)
	if data.VendorName != nil {
		parts = append(parts, *data.VendorName)
	}
	if data.InvoiceNumber != nil {
		parts = append(parts, "invoice "+*data.InvoiceNumber)
	}
	if len(parts) == 0 {
		return "Invoice"
	}
	return strings.Join(parts, " ")
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}
