package yuki

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/invoice-booking/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// CreateBooking posts tx as a journal booking and returns the booking id
func (c *Client) CreateBooking(ctx context.Context, session string, tx *entity.BookingTransaction) (string, error) {
	if tx == nil {
		return "", errors.New("CreateBooking: transaction is required")
	}
	booking := xmlBooking{
		DocumentID:  tx.DocumentID,
		Date:        tx.Date.Format(dateLayout),
		Description: tx.Description,
		Reference:   tx.Reference,
		Lines:       make([]xmlBookingLine, 0, len(tx.Lines)),
	}
	for _, l := range tx.Lines {
		booking.Lines = append(booking.Lines, xmlBookingLine{
			GLAccountCode: l.GLAccountCode,
			Description:   l.Description,
			Amount:        l.Amount.StringFixed(2),
			VATCode:       l.VATCode,
			VATPercentage: l.VATPercentage.String(),
			VATAmount:     l.VATAmount.StringFixed(2),
		})
	}

	var resp createBookingResponse
	err := c.call(ctx, accountingService, &createBookingRequest{
		SessionID:        session,
		AdministrationID: tx.AdministrationID,
		Booking:          booking,
	}, &resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Result), nil
}

func (c *Client) GetAdministrations(ctx context.Context, session string) ([]entity.Administration, error) {
	var resp administrationsResponse
	if err := c.call(ctx, accountingService, newAdminRequest("GetAdministrations", session, ""), &resp); err != nil {
		return nil, err
	}
	out := make([]entity.Administration, 0, len(resp.Items))
	for _, a := range resp.Items {
		out = append(out, entity.Administration{ID: a.ID, Name: a.Name})
	}
	return out, nil
}

func (c *Client) GetGLAccounts(ctx context.Context, session, administrationID string) ([]entity.GLAccount, error) {
	var resp glAccountsResponse
	if err := c.call(ctx, accountingService, newAdminRequest("GetGLAccounts", session, administrationID), &resp); err != nil {
		return nil, err
	}
	return glAccounts(resp.Items), nil
}

func (c *Client) GetGLAccountScheme(ctx context.Context, session, administrationID string) ([]entity.GLAccount, error) {
	var resp glAccountSchemeResponse
	if err := c.call(ctx, accountingService, newAdminRequest("GetGLAccountScheme", session, administrationID), &resp); err != nil {
		return nil, err
	}
	return glAccounts(resp.Items), nil
}

func (c *Client) GetVATCodes(ctx context.Context, session, administrationID string) ([]entity.VATCode, error) {
	var resp vatCodesResponse
	if err := c.call(ctx, accountingService, newAdminRequest("GetVATCodes", session, administrationID), &resp); err != nil {
		return nil, err
	}
	out := make([]entity.VATCode, 0, len(resp.Items))
	for _, v := range resp.Items {
		out = append(out, entity.VATCode{Code: v.Code, Description: v.Description, Percentage: v.Percentage})
	}
	return out, nil
}

func (c *Client) GetStartBalanceByGLAccount(ctx context.Context, session, administrationID string, financialYear int) ([]entity.GLBalance, error) {
	var resp startBalanceResponse
	err := c.call(ctx, accountingService, &startBalanceRequest{
		SessionID:        session,
		AdministrationID: administrationID,
		FinancialYear:    financialYear,
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := make([]entity.GLBalance, 0, len(resp.Items))
	for _, b := range resp.Items {
		out = append(out, entity.GLBalance{GLAccountCode: b.GLAccountCode, Amount: b.Amount})
	}
	return out, nil
}

func (c *Client) GetTransactionDetails(ctx context.Context, session, administrationID, transactionID string) (*entity.TransactionDetail, error) {
	var resp transactionDetailsResponse
	req := &transactionRequest{
		XMLName:          xml.Name{Space: soapNamespace, Local: "GetTransactionDetails"},
		SessionID:        session,
		AdministrationID: administrationID,
		TransactionID:    transactionID,
	}
	if err := c.call(ctx, accountingService, req, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("GetTransactionDetails: transaction %s not returned", transactionID)
	}

	t := resp.Result
	date, err := parseDate(t.Date)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionDetails: %w", err)
	}
	detail := &entity.TransactionDetail{
		ID:          t.ID,
		Date:        date,
		Description: t.Description,
		DocumentID:  t.DocumentID,
		Lines:       make([]entity.BookingLine, 0, len(t.Lines)),
	}
	for _, l := range t.Lines {
		detail.Lines = append(detail.Lines, entity.BookingLine{
			GLAccountCode: l.GLAccountCode,
			Description:   l.Description,
			Amount:        l.Amount,
			VATCode:       l.VATCode,
			VATPercentage: l.VATPercentage,
			VATAmount:     l.VATAmount,
		})
	}
	return detail, nil
}

func (c *Client) GetTransactionDocument(ctx context.Context, session, administrationID, transactionID string) (*entity.BinaryDocument, error) {
	var resp transactionDocumentResponse
	req := &transactionRequest{
		XMLName:          xml.Name{Space: soapNamespace, Local: "GetTransactionDocument"},
		SessionID:        session,
		AdministrationID: administrationID,
		TransactionID:    transactionID,
	}
	if err := c.call(ctx, archiveService, req, &resp); err != nil {
		return nil, err
	}
	return binaryDocument("GetTransactionDocument", resp.Result)
}

func (c *Client) SearchDocuments(ctx context.Context, session, administrationID, query string) ([]entity.DocumentSummary, error) {
	var resp searchDocumentsResponse
	req := &searchRequest{
		XMLName:          xml.Name{Space: soapNamespace, Local: "SearchDocuments"},
		SessionID:        session,
		AdministrationID: administrationID,
		SearchText:       query,
	}
	if err := c.call(ctx, archiveService, req, &resp); err != nil {
		return nil, err
	}

	out := make([]entity.DocumentSummary, 0, len(resp.Items))
	for _, d := range resp.Items {
		date, err := parseDate(d.Date)
		if err != nil {
			return nil, fmt.Errorf("SearchDocuments: %w", err)
		}
		out = append(out, entity.DocumentSummary{
			ID:        d.ID,
			Subject:   d.Subject,
			Reference: d.Reference,
			BookingID: d.BookingID,
			Date:      date,
		})
	}
	return out, nil
}

func (c *Client) GetDocumentBinaryData(ctx context.Context, session, administrationID, documentID string) (*entity.BinaryDocument, error) {
	var resp documentBinaryResponse
	err := c.call(ctx, archiveService, &documentRequest{
		SessionID:        session,
		AdministrationID: administrationID,
		DocumentID:       documentID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return binaryDocument("GetDocumentBinaryData", resp.Result)
}

func (c *Client) SearchContacts(ctx context.Context, session, administrationID, query string) ([]entity.Contact, error) {
	var resp searchContactsResponse
	req := &searchRequest{
		XMLName:          xml.Name{Space: soapNamespace, Local: "SearchContacts"},
		SessionID:        session,
		AdministrationID: administrationID,
		SearchText:       query,
	}
	if err := c.call(ctx, contactService, req, &resp); err != nil {
		return nil, err
	}
	out := make([]entity.Contact, 0, len(resp.Items))
	for _, ct := range resp.Items {
		out = append(out, entity.Contact{
			ID:        ct.ID,
			Name:      ct.Name,
			VATNumber: ct.VATNumber,
			IBAN:      ct.IBAN,
		})
	}
	return out, nil
}

func glAccounts(items []xmlGLAccount) []entity.GLAccount {
	out := make([]entity.GLAccount, 0, len(items))
	for _, g := range items {
		out = append(out, entity.GLAccount{Code: g.Code, Description: g.Description, Type: g.Type})
	}
	return out
}

func binaryDocument(action string, doc *xmlBinaryDocument) (*entity.BinaryDocument, error) {
	if doc == nil {
		return nil, fmt.Errorf("%s: no document returned", action)
	}
	content, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(doc.Content), ""))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid document content: %w", action, err)
	}
	return &entity.BinaryDocument{
		FileName: doc.FileName,
		MimeType: doc.MimeType,
		Content:  content,
	}, nil
}

// parseDate accepts plain dates and the timestamp form .NET services emit.
// An empty value is the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{dateLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
