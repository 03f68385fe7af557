package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/garyjia/invoice-booking/pkg/utils"
	"github.com/shopspring/decimal"
)

var decimalFields = []string{entity.FieldTotalAmount, entity.FieldVATAmount, entity.FieldVATPercentage}

var stringFields = []string{
	entity.FieldVendorName,
	entity.FieldInvoiceNumber,
	entity.FieldIBAN,
	entity.FieldDescription,
}

// checkValidationData rejects payload values that cannot be booked
func checkValidationData(data map[string]interface{}) error {
	const op = "submit validation"

	for _, key := range decimalFields {
		if _, _, err := decimalValue(data, key); err != nil {
			return apperr.Wrap(apperr.InvalidInput, op, err)
		}
	}
	for _, key := range stringFields {
		if _, _, err := stringValue(data, key); err != nil {
			return apperr.Wrap(apperr.InvalidInput, op, err)
		}
	}
	if _, _, err := dateValue(data, entity.FieldInvoiceDate); err != nil {
		return apperr.Wrap(apperr.InvalidInput, op, err)
	}

	if iban, ok, _ := stringValue(data, entity.FieldIBAN); ok && iban != nil {
		if err := utils.ValidateIBAN(*iban); err != nil {
			return apperr.Wrap(apperr.InvalidInput, op, err)
		}
	}
	return nil
}

// MergeValidation lays a validation payload over extracted data. Keys present
// in data win, including explicit nulls; absent keys keep the extracted value.
func MergeValidation(extracted *entity.ExtractedData, data map[string]interface{}) (*entity.ExtractedData, error) {
	merged := extracted.Clone()
	if merged == nil {
		merged = &entity.ExtractedData{}
	}
	if err := checkValidationData(data); err != nil {
		return nil, err
	}

	strs := map[string]**string{
		entity.FieldVendorName:    &merged.VendorName,
		entity.FieldInvoiceNumber: &merged.InvoiceNumber,
		entity.FieldIBAN:          &merged.IBAN,
		entity.FieldDescription:   &merged.Description,
	}
	for key, target := range strs {
		if v, ok, _ := stringValue(data, key); ok {
			*target = v
		}
	}
	if merged.IBAN != nil {
		merged.IBAN = entity.StringPtr(utils.NormalizeIBAN(*merged.IBAN))
	}

	decs := map[string]*decimal.NullDecimal{
		entity.FieldTotalAmount:   &merged.TotalAmount,
		entity.FieldVATAmount:     &merged.VATAmount,
		entity.FieldVATPercentage: &merged.VATPercentage,
	}
	for key, target := range decs {
		if v, ok, _ := decimalValue(data, key); ok {
			*target = v
		}
	}

	if v, ok, _ := dateValue(data, entity.FieldInvoiceDate); ok {
		merged.InvoiceDate = v
	}
	return merged, nil
}

func stringValue(data map[string]interface{}, key string) (*string, bool, error) {
	raw, ok := data[key]
	if !ok {
		return nil, false, nil
	}
	switch v := raw.(type) {
	case nil:
		return nil, true, nil
	case string:
		v = utils.SanitizeString(strings.TrimSpace(v))
		if v == "" {
			return nil, true, nil
		}
		return &v, true, nil
	default:
		return nil, true, fmt.Errorf("%s must be a string", key)
	}
}

// decimalValue accepts exact-decimal strings and JSON numbers
func decimalValue(data map[string]interface{}, key string) (decimal.NullDecimal, bool, error) {
	raw, ok := data[key]
	if !ok {
		return decimal.NullDecimal{}, false, nil
	}

	var s string
	switch v := raw.(type) {
	case nil:
		return decimal.NullDecimal{}, true, nil
	case string:
		s = strings.TrimSpace(v)
		if s == "" {
			return decimal.NullDecimal{}, true, nil
		}
	case json.Number:
		s = v.String()
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(v)), true, nil
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(v))), true, nil
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(v)), true, nil
	default:
		return decimal.NullDecimal{}, true, fmt.Errorf("%s must be a decimal string or number", key)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, true, fmt.Errorf("%s is not a valid decimal: %q", key, s)
	}
	return decimal.NewNullDecimal(d), true, nil
}

// dateValue accepts YYYY-MM-DD and RFC 3339 timestamps
func dateValue(data map[string]interface{}, key string) (*time.Time, bool, error) {
	s, ok, err := stringValue(data, key)
	if err != nil || !ok || s == nil {
		return nil, ok, err
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t, true, nil
		}
	}
	return nil, true, fmt.Errorf("%s must be a date in YYYY-MM-DD form: %q", key, *s)
}
