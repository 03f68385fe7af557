package booking

import (
	"context"

	"github.com/garyjia/invoice-booking/internal/domain/entity"
)

// Read-only pass-through queries. They share the session handling, retry
// policy and failure classification of the write operations.

func (a *Adapter) GetAdministrations(ctx context.Context) ([]entity.Administration, error) {
	var out []entity.Administration
	err := a.do(ctx, "get administrations", func(ctx context.Context, session string) error {
		res, err := a.client.GetAdministrations(ctx, session)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) GetGLAccounts(ctx context.Context, administrationID string) ([]entity.GLAccount, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return nil, err
	}
	var out []entity.GLAccount
	err = a.do(ctx, "get GL accounts", func(ctx context.Context, session string) error {
		res, err := a.client.GetGLAccounts(ctx, session, adminID)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) GetGLAccountScheme(ctx context.Context, administrationID string) ([]entity.GLAccount, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return nil, err
	}
	var out []entity.GLAccount
	err = a.do(ctx, "get GL account scheme", func(ctx context.Context, session string) error {
		res, err := a.client.GetGLAccountScheme(ctx, session, adminID)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) GetVATCodes(ctx context.Context, administrationID string) ([]entity.VATCode, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return nil, err
	}
	var out []entity.VATCode
	err = a.do(ctx, "get VAT codes", func(ctx context.Context, session string) error {
		res, err := a.client.GetVATCodes(ctx, session, adminID)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) GetStartBalanceByGLAccount(ctx context.Context, administrationID string, financialYear int) ([]entity.GLBalance, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return nil, err
	}
	var out []entity.GLBalance
	err = a.do(ctx, "get start balance", func(ctx context.Context, session string) error {
		res, err := a.client.GetStartBalanceByGLAccount(ctx, session, adminID, financialYear)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) GetTransactionDetails(ctx context.Context, administrationID, transactionID string) (*entity.TransactionDetail, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return nil, err
	}
	var out *entity.TransactionDetail
	err = a.do(ctx, "get transaction details", func(ctx context.Context, session string) error {
		res, err := a.client.GetTransactionDetails(ctx, session, adminID, transactionID)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) GetTransactionDocument(ctx context.Context, administrationID, transactionID string) (*entity.BinaryDocument, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return nil, err
	}
	var out *entity.BinaryDocument
	err = a.do(ctx, "get transaction document", func(ctx context.Context, session string) error {
		res, err := a.client.GetTransactionDocument(ctx, session, adminID, transactionID)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) SearchDocuments(ctx context.Context, administrationID, query string) ([]entity.DocumentSummary, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return nil, err
	}
	var out []entity.DocumentSummary
	err = a.do(ctx, "search documents", func(ctx context.Context, session string) error {
		res, err := a.client.SearchDocuments(ctx, session, adminID, query)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) GetDocumentBinaryData(ctx context.Context, administrationID, documentID string) (*entity.BinaryDocument, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return nil, err
	}
	var out *entity.BinaryDocument
	err = a.do(ctx, "get document binary data", func(ctx context.Context, session string) error {
		res, err := a.client.GetDocumentBinaryData(ctx, session, adminID, documentID)
		out = res
		return err
	})
	return out, err
}

func (a *Adapter) SearchContacts(ctx context.Context, administrationID, query string) ([]entity.Contact, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return nil, err
	}
	var out []entity.Contact
	err = a.do(ctx, "search contacts", func(ctx context.Context, session string) error {
		res, err := a.client.SearchContacts(ctx, session, adminID, query)
		out = res
		return err
	})
	return out, err
}
