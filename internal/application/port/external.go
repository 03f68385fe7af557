package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/invoice-booking/internal/domain/entity"
)

// RecognitionProvider turns one page image into text with confidence.
// Unreadable content yields empty text and zero confidence, not an error;
// errors are reserved for failures of the provider itself.
type RecognitionProvider interface {
	Recognize(ctx context.Context, image []byte, mimeType string) (string, entity.PageConfidence, error)
}

// PageImage is one rendered page of a source document
type PageImage struct {
	Index    int
	Data     []byte
	MimeType string
}

// PageRasterizer renders every page of a PDF to an image
type PageRasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]PageImage, error)
}

// ErrTransport marks a connectivity failure reaching the accounting system.
// Transports wrap it so callers can tell transient failures from rejections.
var ErrTransport = errors.New("accounting transport failure")

// UploadMetadata describes a file archived in the accounting system
type UploadMetadata struct {
	FileName     string
	MimeType     string
	Name         string
	Description  string
	Date         time.Time
	DocumentType string
}

// AccountingClient is the wire-level client of the external accounting system.
// Every call except Authenticate runs inside a session returned by Authenticate.
type AccountingClient interface {
	Authenticate(ctx context.Context) (string, error)

	UploadDocument(ctx context.Context, session, administrationID string, content []byte, meta UploadMetadata) (string, error)
	CreateBooking(ctx context.Context, session string, tx *entity.BookingTransaction) (string, error)

	GetTransactionDetails(ctx context.Context, session, administrationID, transactionID string) (*entity.TransactionDetail, error)
	GetTransactionDocument(ctx context.Context, session, administrationID, transactionID string) (*entity.BinaryDocument, error)
	GetGLAccountScheme(ctx context.Context, session, administrationID string) ([]entity.GLAccount, error)
	GetStartBalanceByGLAccount(ctx context.Context, session, administrationID string, financialYear int) ([]entity.GLBalance, error)
	SearchDocuments(ctx context.Context, session, administrationID, query string) ([]entity.DocumentSummary, error)
	GetDocumentBinaryData(ctx context.Context, session, administrationID, documentID string) (*entity.BinaryDocument, error)
	SearchContacts(ctx context.Context, session, administrationID, query string) ([]entity.Contact, error)
	GetAdministrations(ctx context.Context, session string) ([]entity.Administration, error)
	GetGLAccounts(ctx context.Context, session, administrationID string) ([]entity.GLAccount, error)
	GetVATCodes(ctx context.Context, session, administrationID string) ([]entity.VATCode, error)
}
