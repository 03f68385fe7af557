package booking

import (
	"testing"
	"time"

	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func bookingOptions() Options {
	return Options{
		AdministrationID: "admin-1",
		DocumentID:       "doc-1",
		ContentHash:      "abc",
		GLAccount:        "4000",
		VATGLAccount:     "1520",
		VATCode:          "VH",
	}
}

func TestBuildTransaction_LineCount(t *testing.T) {
	tests := []struct {
		name      string
		vatAmount decimal.NullDecimal
		wantLines int
	}{
		{"vat present", dec("21.00"), 2},
		{"vat zero", dec("0"), 1},
		{"vat unknown", decimal.NullDecimal{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &entity.ExtractedData{TotalAmount: dec("121.00"), VATAmount: tt.vatAmount}

			tx, err := BuildTransaction(data, "ext-1", bookingOptions(), bookingNow)
			require.NoError(t, err)
			assert.Len(t, tx.Lines, tt.wantLines)
		})
	}
}

func TestBuildTransaction_Lines(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	data := &entity.ExtractedData{
		InvoiceNumber: entity.StringPtr("INV-001"),
		InvoiceDate:   &date,
		TotalAmount:   dec("121.00"),
		VATAmount:     dec("21.00"),
		VATPercentage: dec("21"),
		Description:   entity.StringPtr("Office chairs"),
	}

	tx, err := BuildTransaction(data, "ext-1", bookingOptions(), bookingNow)
	require.NoError(t, err)

	assert.Equal(t, "admin-1", tx.AdministrationID)
	assert.Equal(t, "ext-1", tx.DocumentID)
	assert.Equal(t, date, tx.Date)
	assert.Equal(t, "Office chairs", tx.Description)
	assert.Equal(t, IdempotencyKey("doc-1", "abc"), tx.Reference)

	principal := tx.Lines[0]
	assert.Equal(t, "4000", principal.GLAccountCode)
	assert.True(t, principal.Amount.Equal(decimal.RequireFromString("121")))
	assert.Equal(t, "VH", principal.VATCode)
	assert.True(t, principal.VATPercentage.Equal(decimal.NewFromInt(21)))
	assert.True(t, principal.VATAmount.Equal(decimal.NewFromInt(21)))

	vat := tx.Lines[1]
	assert.Equal(t, "1520", vat.GLAccountCode)
	assert.Equal(t, "VAT 21%", vat.Description)
	assert.True(t, vat.Amount.Equal(decimal.NewFromInt(21)))
	assert.True(t, vat.VATPercentage.IsZero())
	assert.True(t, vat.VATAmount.IsZero())
	assert.Equal(t, "VH", vat.VATCode)
}

func TestBuildTransaction_Defaults(t *testing.T) {
	data := &entity.ExtractedData{
		VendorName:    entity.StringPtr("Acme B.V."),
		InvoiceNumber: entity.StringPtr("INV-9"),
		TotalAmount:   dec("50"),
	}

	tx, err := BuildTransaction(data, "ext-1", bookingOptions(), bookingNow)
	require.NoError(t, err)
	assert.Equal(t, bookingNow, tx.Date)
	assert.Equal(t, "Acme B.V. invoice INV-9", tx.Description)
	assert.True(t, tx.Lines[0].VATPercentage.IsZero())

	tx, err = BuildTransaction(&entity.ExtractedData{TotalAmount: dec("50")}, "ext-1", bookingOptions(), bookingNow)
	require.NoError(t, err)
	assert.Equal(t, "Invoice", tx.Description)
}

func TestBuildTransaction_InvalidInput(t *testing.T) {
	noVATAccount := bookingOptions()
	noVATAccount.VATGLAccount = ""
	noGLAccount := bookingOptions()
	noGLAccount.GLAccount = ""

	tests := []struct {
		name string
		data *entity.ExtractedData
		opts Options
	}{
		{"nil data", nil, bookingOptions()},
		{"missing total", &entity.ExtractedData{VATAmount: dec("21")}, bookingOptions()},
		{"missing GL account", &entity.ExtractedData{TotalAmount: dec("10")}, noGLAccount},
		{"missing VAT GL account", &entity.ExtractedData{TotalAmount: dec("121"), VATAmount: dec("21")}, noVATAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTransaction(tt.data, "ext-1", tt.opts, bookingNow)
			assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	a := IdempotencyKey("doc-1", "hash")
	assert.Equal(t, a, IdempotencyKey("doc-1", "hash"))
	assert.NotEqual(t, a, IdempotencyKey("doc-2", "hash"))
	assert.NotEqual(t, a, IdempotencyKey("doc-1", "other"))
	assert.Len(t, a, 27)
}
