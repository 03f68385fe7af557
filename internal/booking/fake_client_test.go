package booking

import (
	"context"
	"sync"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
)

// fakeClient is a scripted AccountingClient. Unset hooks succeed.
type fakeClient struct {
	mu sync.Mutex

	authenticate  func(ctx context.Context) (string, error)
	upload        func(ctx context.Context, session string) (string, error)
	createBooking func(ctx context.Context, session string, tx *entity.BookingTransaction) (string, error)
	search        func(ctx context.Context, session, query string) ([]entity.DocumentSummary, error)
	getVATCodes   func(ctx context.Context, session string) ([]entity.VATCode, error)

	authCalls    int
	uploadCalls  int
	bookingCalls int
	searchCalls  int
	sessions     []string
	lastUpload   port.UploadMetadata
	bookings     []*entity.BookingTransaction
}

var _ port.AccountingClient = (*fakeClient)(nil)

func (f *fakeClient) Authenticate(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.authCalls++
	f.mu.Unlock()
	if f.authenticate != nil {
		return f.authenticate(ctx)
	}
	return "session-1", nil
}

func (f *fakeClient) UploadDocument(ctx context.Context, session, administrationID string, content []byte, meta port.UploadMetadata) (string, error) {
	f.mu.Lock()
	f.uploadCalls++
	f.lastUpload = meta
	f.sessions = append(f.sessions, session)
	f.mu.Unlock()
	if f.upload != nil {
		return f.upload(ctx, session)
	}
	return "ext-doc-1", nil
}

func (f *fakeClient) CreateBooking(ctx context.Context, session string, tx *entity.BookingTransaction) (string, error) {
	f.mu.Lock()
	f.bookingCalls++
	f.bookings = append(f.bookings, tx)
	f.sessions = append(f.sessions, session)
	f.mu.Unlock()
	if f.createBooking != nil {
		return f.createBooking(ctx, session, tx)
	}
	return "booking-1", nil
}

func (f *fakeClient) SearchDocuments(ctx context.Context, session, administrationID, query string) ([]entity.DocumentSummary, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	if f.search != nil {
		return f.search(ctx, session, query)
	}
	return nil, nil
}

func (f *fakeClient) GetVATCodes(ctx context.Context, session, administrationID string) ([]entity.VATCode, error) {
	if f.getVATCodes != nil {
		return f.getVATCodes(ctx, session)
	}
	return nil, nil
}

func (f *fakeClient) GetTransactionDetails(ctx context.Context, session, administrationID, transactionID string) (*entity.TransactionDetail, error) {
	return &entity.TransactionDetail{ID: transactionID}, nil
}

func (f *fakeClient) GetTransactionDocument(ctx context.Context, session, administrationID, transactionID string) (*entity.BinaryDocument, error) {
	return &entity.BinaryDocument{FileName: transactionID + ".pdf"}, nil
}

func (f *fakeClient) GetGLAccountScheme(ctx context.Context, session, administrationID string) ([]entity.GLAccount, error) {
	return []entity.GLAccount{{Code: "4000"}}, nil
}

func (f *fakeClient) GetStartBalanceByGLAccount(ctx context.Context, session, administrationID string, financialYear int) ([]entity.GLBalance, error) {
	return nil, nil
}

func (f *fakeClient) GetDocumentBinaryData(ctx context.Context, session, administrationID, documentID string) (*entity.BinaryDocument, error) {
	return &entity.BinaryDocument{FileName: documentID}, nil
}

func (f *fakeClient) SearchContacts(ctx context.Context, session, administrationID, query string) ([]entity.Contact, error) {
	return []entity.Contact{{ID: "c1", Name: query}}, nil
}

func (f *fakeClient) GetAdministrations(ctx context.Context, session string) ([]entity.Administration, error) {
	return []entity.Administration{{ID: "admin-1", Name: "Acme"}}, nil
}

func (f *fakeClient) GetGLAccounts(ctx context.Context, session, administrationID string) ([]entity.GLAccount, error) {
	return []entity.GLAccount{{Code: "4000", Description: "Kantoorkosten"}}, nil
}
