package yuki

import (
	"encoding/xml"

	"github.com/shopspring/decimal"
)

type authenticateRequest struct {
	XMLName  xml.Name `xml:"http://www.theyukicompany.com/ AuthenticateByUserName"`
	UserName string   `xml:"userName"`
	Password string   `xml:"password"`
}

func (*authenticateRequest) action() string { return "AuthenticateByUserName" }

type authenticateResponse struct {
	Result string `xml:"AuthenticateByUserNameResult"`
}

type xmlBookingLine struct {
	GLAccountCode string `xml:"GLAccountCode"`
	Description   string `xml:"Description"`
	Amount        string `xml:"Amount"`
	VATCode       string `xml:"VATCode,omitempty"`
	VATPercentage string `xml:"VATPercentage"`
	VATAmount     string `xml:"VATAmount"`
}

type xmlBooking struct {
	DocumentID  string           `xml:"DocumentID"`
	Date        string           `xml:"Date"`
	Description string           `xml:"Description"`
	Reference   string           `xml:"Reference"`
	Lines       []xmlBookingLine `xml:"Lines>Line"`
}

type createBookingRequest struct {
	XMLName          xml.Name   `xml:"http://www.theyukicompany.com/ CreateBooking"`
	SessionID        string     `xml:"sessionID"`
	AdministrationID string     `xml:"administrationID"`
	Booking          xmlBooking `xml:"booking"`
}

func (*createBookingRequest) action() string { return "CreateBooking" }

type createBookingResponse struct {
	Result string `xml:"CreateBookingResult"`
}

// adminRequest covers the queries scoped by session and administration only
type adminRequest struct {
	XMLName          xml.Name
	SessionID        string `xml:"sessionID"`
	AdministrationID string `xml:"administrationID,omitempty"`
}

func (r *adminRequest) action() string { return r.XMLName.Local }

func newAdminRequest(action, session, administrationID string) *adminRequest {
	return &adminRequest{
		XMLName:          xml.Name{Space: soapNamespace, Local: action},
		SessionID:        session,
		AdministrationID: administrationID,
	}
}

type transactionRequest struct {
	XMLName          xml.Name
	SessionID        string `xml:"sessionID"`
	AdministrationID string `xml:"administrationID"`
	TransactionID    string `xml:"transactionID"`
}

func (r *transactionRequest) action() string { return r.XMLName.Local }

type startBalanceRequest struct {
	XMLName          xml.Name `xml:"http://www.theyukicompany.com/ GetStartBalanceByGLAccount"`
	SessionID        string   `xml:"sessionID"`
	AdministrationID string   `xml:"administrationID"`
	FinancialYear    int      `xml:"financialYear"`
}

func (*startBalanceRequest) action() string { return "GetStartBalanceByGLAccount" }

type searchRequest struct {
	XMLName          xml.Name
	SessionID        string `xml:"sessionID"`
	AdministrationID string `xml:"administrationID"`
	SearchText       string `xml:"searchText"`
}

func (r *searchRequest) action() string { return r.XMLName.Local }

type documentRequest struct {
	XMLName          xml.Name `xml:"http://www.theyukicompany.com/ GetDocumentBinaryData"`
	SessionID        string   `xml:"sessionID"`
	AdministrationID string   `xml:"administrationID"`
	DocumentID       string   `xml:"documentID"`
}

func (*documentRequest) action() string { return "GetDocumentBinaryData" }

// Response payloads. Results are wrapped in an element named after the
// operation, e.g. <GetVATCodesResult>.

type xmlAdministration struct {
	ID   string `xml:"ID"`
	Name string `xml:"Name"`
}

type xmlGLAccount struct {
	Code        string `xml:"Code"`
	Description string `xml:"Description"`
	Type        string `xml:"Type"`
}

type xmlVATCode struct {
	Code        string          `xml:"Code"`
	Description string          `xml:"Description"`
	Percentage  decimal.Decimal `xml:"Percentage"`
}

type xmlBalance struct {
	GLAccountCode string          `xml:"GLAccountCode"`
	Amount        decimal.Decimal `xml:"Amount"`
}

type xmlDocumentSummary struct {
	ID        string `xml:"ID"`
	Subject   string `xml:"Subject"`
	Reference string `xml:"Reference"`
	BookingID string `xml:"BookingID"`
	Date      string `xml:"Date"`
}

type xmlContact struct {
	ID        string `xml:"ID"`
	Name      string `xml:"Name"`
	VATNumber string `xml:"VATNumber"`
	IBAN      string `xml:"IBAN"`
}

type xmlTransactionLine struct {
	GLAccountCode string          `xml:"GLAccountCode"`
	Description   string          `xml:"Description"`
	Amount        decimal.Decimal `xml:"Amount"`
	VATCode       string          `xml:"VATCode"`
	VATPercentage decimal.Decimal `xml:"VATPercentage"`
	VATAmount     decimal.Decimal `xml:"VATAmount"`
}

type xmlTransaction struct {
	ID          string               `xml:"ID"`
	Date        string               `xml:"Date"`
	Description string               `xml:"Description"`
	DocumentID  string               `xml:"DocumentID"`
	Lines       []xmlTransactionLine `xml:"Lines>Line"`
}

type xmlBinaryDocument struct {
	FileName string `xml:"FileName"`
	MimeType string `xml:"MimeType"`
	// Content is base64 encoded
	Content string `xml:"Content"`
}

type administrationsResponse struct {
	Items []xmlAdministration `xml:"GetAdministrationsResult>Administration"`
}

type glAccountsResponse struct {
	Items []xmlGLAccount `xml:"GetGLAccountsResult>GLAccount"`
}

type glAccountSchemeResponse struct {
	Items []xmlGLAccount `xml:"GetGLAccountSchemeResult>GLAccount"`
}

type vatCodesResponse struct {
	Items []xmlVATCode `xml:"GetVATCodesResult>VATCode"`
}

type startBalanceResponse struct {
	Items []xmlBalance `xml:"GetStartBalanceByGLAccountResult>Balance"`
}

type searchDocumentsResponse struct {
	Items []xmlDocumentSummary `xml:"SearchDocumentsResult>Document"`
}

type searchContactsResponse struct {
	Items []xmlContact `xml:"SearchContactsResult>Contact"`
}

type transactionDetailsResponse struct {
	Result *xmlTransaction `xml:"GetTransactionDetailsResult"`
}

type transactionDocumentResponse struct {
	Result *xmlBinaryDocument `xml:"GetTransactionDocumentResult"`
}

type documentBinaryResponse struct {
	Result *xmlBinaryDocument `xml:"GetDocumentBinaryDataResult"`
}
