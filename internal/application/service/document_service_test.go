package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-booking/internal/domain/workflow"
	"github.com/garyjia/invoice-booking/internal/recognition"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const invoiceText = "Factuur nummer: INV-001\nTotaal: €121,00\nBTW: €21,00\n21%"

var pdfContent = []byte("%PDF-1.4 test invoice")

func recognised(text string) *recognition.Result {
	return &recognition.Result{
		Text:       text,
		Confidence: entity.ConfidenceScores{Overall: 88},
	}
}

func intake(t *testing.T, h *harness) *entity.Document {
	t.Helper()
	doc, err := h.service.Intake(context.Background(), IntakeRequest{
		Filename: "invoice 2024.pdf",
		MimeType: "application/pdf",
		Content:  pdfContent,
	})
	require.NoError(t, err)
	return doc
}

func extracted(t *testing.T, h *harness) *entity.Document {
	t.Helper()
	doc := intake(t, h)
	h.recognizer.On("Recognize", mock.Anything, pdfContent, "application/pdf").Return(recognised(invoiceText), nil).Once()
	doc, err := h.service.Advance(context.Background(), doc.ID, "")
	require.NoError(t, err)
	return doc
}

func validated(t *testing.T, h *harness, data map[string]interface{}) *entity.Document {
	t.Helper()
	doc := extracted(t, h)
	doc, err := h.service.SubmitValidation(context.Background(), doc.ID, ValidationRequest{ValidatedBy: "alice", Data: data})
	require.NoError(t, err)
	return doc
}

func TestDocumentService_EndToEnd(t *testing.T) {
	h := newHarness(0)
	ctx := context.Background()

	doc := intake(t, h)
	assert.Equal(t, "PENDING", doc.Status)

	h.recognizer.On("Recognize", mock.Anything, pdfContent, "application/pdf").Return(recognised(invoiceText), nil).Once()
	doc, err := h.service.Advance(ctx, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "EXTRACTED", doc.Status)
	require.NotNil(t, doc.ExtractedData)
	assert.Equal(t, "INV-001", entity.StringValue(doc.ExtractedData.InvoiceNumber))
	assert.True(t, doc.ExtractedData.TotalAmount.Decimal.Equal(decimal.RequireFromString("121.00")))
	assert.True(t, doc.ExtractedData.VATAmount.Decimal.Equal(decimal.RequireFromString("21.00")))
	assert.True(t, doc.ExtractedData.VATPercentage.Decimal.Equal(decimal.NewFromInt(21)))
	require.NotNil(t, doc.ConfidenceScores)
	assert.Equal(t, 88.0, doc.ConfidenceScores.Overall)

	doc, err = h.service.SubmitValidation(ctx, doc.ID, ValidationRequest{
		ValidatedBy: "alice",
		Data:        map[string]interface{}{"vendor_name": "Acme B.V."},
	})
	require.NoError(t, err)
	assert.Equal(t, "VALIDATED", doc.Status)

	doc, err = h.service.Book(ctx, doc.ID, BookRequest{Actor: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "BOOKED", doc.Status)
	assert.Equal(t, "booking-1", entity.StringValue(doc.ExternalBookingID))
	assert.Equal(t, "ext-doc-1", entity.StringValue(doc.ExternalDocumentID))

	require.Len(t, h.booker.bookings, 1)
	booked := h.booker.bookings[0]
	assert.Equal(t, "Acme B.V.", entity.StringValue(booked.VendorName))
	assert.Equal(t, "INV-001", entity.StringValue(booked.InvoiceNumber))
	opts := h.booker.options[0]
	assert.Equal(t, "admin-default", opts.AdministrationID)
	assert.Equal(t, doc.ContentHash, opts.ContentHash)
	assert.Equal(t, "4000", opts.GLAccount)

	assert.Equal(t, []string{
		"document.created",
		"document.start_processing",
		"document.complete_extraction",
		"document.validate",
		"document.complete_upload",
		"document.complete_booking",
	}, h.actions(doc.ID))

	stored, err := h.service.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Factuur nummer: INV-001", entity.StringValue(stored.ExtractedData.VendorName),
		"validation must not overwrite extracted data")
	h.recognizer.AssertExpectations(t)
}

func TestDocumentService_Intake(t *testing.T) {
	h := newHarness(0)

	doc := intake(t, h)

	sum := sha256.Sum256(pdfContent)
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.ContentHash)
	assert.Equal(t, int64(len(pdfContent)), doc.FileSize)
	assert.Equal(t, "invoice 2024.pdf", doc.OriginalFilename)
	assert.Equal(t, "invoice_2024.pdf", doc.Filename)
	assert.Equal(t, doc.ID+"/invoice_2024.pdf", doc.StoragePath)
	assert.True(t, h.storage.Exists(context.Background(), doc.StoragePath))
	assert.Equal(t, []string{"document.created"}, h.actions(doc.ID))
}

func TestDocumentService_IntakeRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name string
		req  IntakeRequest
	}{
		{"empty file", IntakeRequest{Filename: "a.pdf", MimeType: "application/pdf"}},
		{"too large", IntakeRequest{Filename: "a.pdf", MimeType: "application/pdf", Content: make([]byte, 33)}},
		{"unsupported type", IntakeRequest{Filename: "a.txt", MimeType: "text/plain", Content: []byte("hello")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(32)

			_, err := h.service.Intake(context.Background(), tt.req)

			assert.True(t, apperr.IsKind(err, apperr.InvalidInput), "got %v", err)
			assert.Empty(t, h.storage.files)
			assert.Empty(t, h.docs.docs)
		})
	}
}

func TestDocumentService_AdvanceFailureMovesToError(t *testing.T) {
	h := newHarness(0)
	ctx := context.Background()
	doc := intake(t, h)

	h.recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("rasterize pdf: broken xref table")).Once()

	_, err := h.service.Advance(ctx, doc.ID, "")
	require.Error(t, err)

	stored, _ := h.service.Get(ctx, doc.ID)
	assert.Equal(t, "ERROR", stored.Status)
	assert.Contains(t, entity.StringValue(stored.ErrorMessage), "broken xref table")

	// retry then resume from PROCESSING
	retried, err := h.service.Retry(ctx, doc.ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, "PROCESSING", retried.Status)
	assert.Nil(t, retried.ErrorMessage)

	h.recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).Return(recognised(invoiceText), nil).Once()
	advanced, err := h.service.Advance(ctx, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "EXTRACTED", advanced.Status)

	assert.Equal(t, []string{
		"document.created",
		"document.start_processing",
		"document.fail",
		"document.retry",
		"document.complete_extraction",
	}, h.actions(doc.ID))
}

func TestDocumentService_AdvanceCancelledStillRecordsError(t *testing.T) {
	h := newHarness(0)
	doc := intake(t, h)
	ctx, cancel := context.WithCancel(context.Background())

	h.recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, fmt.Errorf("recognize pages: %w", context.Canceled)).Once()

	_, err := h.service.Advance(ctx, doc.ID, "")
	assert.ErrorIs(t, err, context.Canceled)

	stored, _ := h.service.Get(context.Background(), doc.ID)
	assert.Equal(t, "ERROR", stored.Status)
	assert.Contains(t, entity.StringValue(stored.ErrorMessage), "processing cancelled")
}

func TestDocumentService_AdvanceRejectsOtherStates(t *testing.T) {
	h := newHarness(0)
	doc := extracted(t, h)

	_, err := h.service.Advance(context.Background(), doc.ID, "")

	assert.True(t, apperr.IsKind(err, apperr.StateConflict), "got %v", err)
}

func TestDocumentService_SubmitValidationRejectsBadPayload(t *testing.T) {
	tests := []struct {
		name string
		req  ValidationRequest
	}{
		{"missing validator", ValidationRequest{Data: map[string]interface{}{}}},
		{"bad IBAN checksum", ValidationRequest{ValidatedBy: "bob", Data: map[string]interface{}{"iban": "NL92ABNA0417164300"}}},
		{"bad amount", ValidationRequest{ValidatedBy: "bob", Data: map[string]interface{}{"total_amount": "12,5,6"}}},
		{"bad date", ValidationRequest{ValidatedBy: "bob", Data: map[string]interface{}{"invoice_date": "15/03/2024"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(0)
			doc := extracted(t, h)

			_, err := h.service.SubmitValidation(context.Background(), doc.ID, tt.req)

			assert.True(t, apperr.IsKind(err, apperr.InvalidInput), "got %v", err)
			stored, _ := h.service.Get(context.Background(), doc.ID)
			assert.Equal(t, "EXTRACTED", stored.Status)
			assert.Empty(t, h.validations.records)
		})
	}
}

func TestDocumentService_SubmitValidationBeforeExtraction(t *testing.T) {
	h := newHarness(0)
	doc := intake(t, h)

	_, err := h.service.SubmitValidation(context.Background(), doc.ID, ValidationRequest{ValidatedBy: "bob"})

	assert.True(t, apperr.IsKind(err, apperr.StateConflict), "got %v", err)
}

func TestDocumentService_BookRequiresValidation(t *testing.T) {
	h := newHarness(0)
	doc := extracted(t, h)

	_, err := h.service.Book(context.Background(), doc.ID, BookRequest{})

	assert.True(t, apperr.IsKind(err, apperr.ValidationRequired), "got %v", err)
	assert.Zero(t, h.booker.uploads)
	stored, _ := h.service.Get(context.Background(), doc.ID)
	assert.Equal(t, "EXTRACTED", stored.Status)
}

func TestDocumentService_BookUsesValidatedValues(t *testing.T) {
	h := newHarness(0)
	doc := validated(t, h, map[string]interface{}{
		"total_amount": "150.00",
		"vat_amount":   nil,
		"iban":         "nl91 abna 0417 1643 00",
	})

	_, err := h.service.Book(context.Background(), doc.ID, BookRequest{AdministrationID: "admin-7", GLAccount: "4400"})
	require.NoError(t, err)

	booked := h.booker.bookings[0]
	assert.True(t, booked.TotalAmount.Decimal.Equal(decimal.RequireFromString("150")))
	assert.False(t, booked.VATAmount.Valid)
	assert.Equal(t, "NL91ABNA0417164300", entity.StringValue(booked.IBAN))
	assert.Equal(t, "admin-7", h.booker.options[0].AdministrationID)
	assert.Equal(t, "4400", h.booker.options[0].GLAccount)
}

func TestDocumentService_BookingFailureMovesToError(t *testing.T) {
	h := newHarness(0)
	ctx := context.Background()
	doc := validated(t, h, nil)
	h.booker.bookingErrs = []error{apperr.New(apperr.ConnectionError, "create booking", "giving up after 3 attempts")}

	_, err := h.service.Book(ctx, doc.ID, BookRequest{})

	assert.True(t, apperr.IsKind(err, apperr.ConnectionError), "got %v", err)
	stored, _ := h.service.Get(ctx, doc.ID)
	assert.Equal(t, "ERROR", stored.Status)
	assert.Equal(t, "ext-doc-1", entity.StringValue(stored.ExternalDocumentID))
	assert.Nil(t, stored.ExternalBookingID)
	assert.Contains(t, entity.StringValue(stored.ErrorMessage), "giving up after 3 attempts")

	// the uploaded file is reused on the next attempt
	_, err = h.service.Retry(ctx, doc.ID, "")
	require.NoError(t, err)
	h.recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).Return(recognised(invoiceText), nil).Once()
	_, err = h.service.Advance(ctx, doc.ID, "")
	require.NoError(t, err)
	_, err = h.service.SubmitValidation(ctx, doc.ID, ValidationRequest{ValidatedBy: "alice"})
	require.NoError(t, err)

	booked, err := h.service.Book(ctx, doc.ID, BookRequest{})
	require.NoError(t, err)
	assert.Equal(t, "BOOKED", booked.Status)
	assert.Equal(t, 1, h.booker.uploads)
	assert.Len(t, h.booker.bookings, 2)
}

func TestDocumentService_UploadFailureMovesToError(t *testing.T) {
	h := newHarness(0)
	doc := validated(t, h, nil)
	h.booker.uploadErr = apperr.New(apperr.ExternalServiceError, "upload document", "administration not found")

	_, err := h.service.Book(context.Background(), doc.ID, BookRequest{})

	assert.True(t, apperr.IsKind(err, apperr.ExternalServiceError), "got %v", err)
	stored, _ := h.service.Get(context.Background(), doc.ID)
	assert.Equal(t, "ERROR", stored.Status)
	assert.Nil(t, stored.ExternalDocumentID)
	assert.Empty(t, h.booker.bookings)
}

func TestDocumentService_BookWithoutTotal(t *testing.T) {
	h := newHarness(0)
	doc := validated(t, h, map[string]interface{}{"total_amount": nil})

	_, err := h.service.Book(context.Background(), doc.ID, BookRequest{})

	assert.True(t, apperr.IsKind(err, apperr.InvalidInput), "got %v", err)
	assert.Zero(t, h.booker.uploads)
	stored, _ := h.service.Get(context.Background(), doc.ID)
	assert.Equal(t, "ERROR", stored.Status)
}

func TestDocumentService_BookCommitsAfterCallerCancels(t *testing.T) {
	h := newHarness(0)
	doc := validated(t, h, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.booker.onBooking = cancel

	booked, err := h.service.Book(ctx, doc.ID, BookRequest{})

	require.NoError(t, err)
	assert.Equal(t, "BOOKED", booked.Status)
	stored, _ := h.service.Get(context.Background(), doc.ID)
	assert.Equal(t, "BOOKED", stored.Status)
	assert.Equal(t, "booking-1", entity.StringValue(stored.ExternalBookingID))
	assert.Nil(t, stored.ErrorMessage)
}

func TestDocumentService_BookResumesUploadedDocument(t *testing.T) {
	h := newHarness(0)
	ctx := context.Background()
	doc := validated(t, h, nil)

	uploaded, _ := h.docs.GetByID(ctx, doc.ID)
	uploaded.Status = "UPLOADED"
	uploaded.ExternalDocumentID = entity.StringPtr("ext-doc-9")
	require.NoError(t, h.docs.Save(ctx, uploaded))

	booked, err := h.service.Book(ctx, doc.ID, BookRequest{})

	require.NoError(t, err)
	assert.Equal(t, "BOOKED", booked.Status)
	assert.Zero(t, h.booker.uploads)
	assert.Equal(t, []string{"ext-doc-9"}, h.booker.externalIDs)
	actions := h.actions(doc.ID)
	assert.Equal(t, "document.complete_booking", actions[len(actions)-1])
}

func TestDocumentService_BookRecordFailureMovesToError(t *testing.T) {
	h := newHarness(0)
	ctx := context.Background()
	doc := validated(t, h, nil)
	h.docs.failSaveStatus = "BOOKED"

	_, err := h.service.Book(ctx, doc.ID, BookRequest{})

	require.Error(t, err)
	stored, _ := h.service.Get(ctx, doc.ID)
	assert.Equal(t, "ERROR", stored.Status)
	assert.Equal(t, "ext-doc-1", entity.StringValue(stored.ExternalDocumentID))
	assert.Contains(t, entity.StringValue(stored.ErrorMessage), "booking-1")

	// the document can be retried through the normal path
	h.docs.failSaveStatus = ""
	_, err = h.service.Retry(ctx, doc.ID, "")
	require.NoError(t, err)
	h.recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).Return(recognised(invoiceText), nil).Once()
	_, err = h.service.Advance(ctx, doc.ID, "")
	require.NoError(t, err)
	_, err = h.service.SubmitValidation(ctx, doc.ID, ValidationRequest{ValidatedBy: "alice"})
	require.NoError(t, err)

	booked, err := h.service.Book(ctx, doc.ID, BookRequest{})
	require.NoError(t, err)
	assert.Equal(t, "BOOKED", booked.Status)
	assert.Equal(t, 1, h.booker.uploads)
}

func TestDocumentService_List(t *testing.T) {
	h := newHarness(0)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, intake(t, h).ID)
	}

	page, err := h.service.List(context.Background(), ListQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[3], page.Items[0].ID)
	assert.Equal(t, ids[2], page.Items[1].ID)

	page, err = h.service.List(context.Background(), ListQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, page.Limit)

	page, err = h.service.List(context.Background(), ListQuery{Status: "BOOKED"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Items)

	_, err = h.service.List(context.Background(), ListQuery{Status: "ARCHIVED"})
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
}

func TestDocumentService_NotFound(t *testing.T) {
	h := newHarness(0)
	ctx := context.Background()

	_, err := h.service.Get(ctx, "missing")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	_, err = h.service.AuditTrail(ctx, "missing")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	_, err = h.service.Book(ctx, "missing", BookRequest{})
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	_, err = h.service.Advance(ctx, "missing", "")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestDocumentService_Validations(t *testing.T) {
	h := newHarness(0)
	doc := validated(t, h, map[string]interface{}{"invoice_number": "INV-002"})

	records, err := h.service.Validations(context.Background(), doc.ID)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].ValidatedBy)
	assert.Equal(t, domainwf.StateValidated.String(), doc.Status)
}
