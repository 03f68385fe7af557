package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-booking/internal/domain/entity"
)

// AccountingQueries are the read-only lookups of the accounting system used by
// validation screens. *booking.Adapter implements it.
type AccountingQueries interface {
	GetAdministrations(ctx context.Context) ([]entity.Administration, error)
	GetGLAccounts(ctx context.Context, administrationID string) ([]entity.GLAccount, error)
	GetGLAccountScheme(ctx context.Context, administrationID string) ([]entity.GLAccount, error)
	GetVATCodes(ctx context.Context, administrationID string) ([]entity.VATCode, error)
	GetStartBalanceByGLAccount(ctx context.Context, administrationID string, financialYear int) ([]entity.GLBalance, error)
	GetTransactionDetails(ctx context.Context, administrationID, transactionID string) (*entity.TransactionDetail, error)
	GetTransactionDocument(ctx context.Context, administrationID, transactionID string) (*entity.BinaryDocument, error)
	SearchDocuments(ctx context.Context, administrationID, query string) ([]entity.DocumentSummary, error)
	GetDocumentBinaryData(ctx context.Context, administrationID, documentID string) (*entity.BinaryDocument, error)
	SearchContacts(ctx context.Context, administrationID, query string) ([]entity.Contact, error)
}

// AccountingHandlers passes lookups through to the accounting system
type AccountingHandlers struct {
	queries AccountingQueries
	logger  Logger
}

// NewAccountingHandlers creates a new AccountingHandlers instance
func NewAccountingHandlers(queries AccountingQueries, logger Logger) *AccountingHandlers {
	return &AccountingHandlers{queries: queries, logger: logger}
}

// respond writes the result of a lookup, or its error
func respond[T any](h *AccountingHandlers, c *gin.Context, v T, err error) {
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, v)
}

func (h *AccountingHandlers) Administrations(c *gin.Context) {
	v, err := h.queries.GetAdministrations(c.Request.Context())
	respond(h, c, v, err)
}

func (h *AccountingHandlers) GLAccounts(c *gin.Context) {
	v, err := h.queries.GetGLAccounts(c.Request.Context(), c.Param("admin"))
	respond(h, c, v, err)
}

func (h *AccountingHandlers) GLAccountScheme(c *gin.Context) {
	v, err := h.queries.GetGLAccountScheme(c.Request.Context(), c.Param("admin"))
	respond(h, c, v, err)
}

func (h *AccountingHandlers) VATCodes(c *gin.Context) {
	v, err := h.queries.GetVATCodes(c.Request.Context(), c.Param("admin"))
	respond(h, c, v, err)
}

// StartBalance takes the financial year from ?year=, defaulting to the current year
func (h *AccountingHandlers) StartBalance(c *gin.Context) {
	year := time.Now().Year()
	if raw := c.Query("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1900 || y > 9999 {
			badRequest(c, fmt.Sprintf("invalid year %q", raw))
			return
		}
		year = y
	}
	v, err := h.queries.GetStartBalanceByGLAccount(c.Request.Context(), c.Param("admin"), year)
	respond(h, c, v, err)
}

func (h *AccountingHandlers) TransactionDetails(c *gin.Context) {
	v, err := h.queries.GetTransactionDetails(c.Request.Context(), c.Param("admin"), c.Param("tx"))
	respond(h, c, v, err)
}

func (h *AccountingHandlers) TransactionDocument(c *gin.Context) {
	doc, err := h.queries.GetTransactionDocument(c.Request.Context(), c.Param("admin"), c.Param("tx"))
	h.binary(c, doc, err)
}

func (h *AccountingHandlers) SearchDocuments(c *gin.Context) {
	v, err := h.queries.SearchDocuments(c.Request.Context(), c.Param("admin"), c.Query("q"))
	respond(h, c, v, err)
}

func (h *AccountingHandlers) DocumentBinary(c *gin.Context) {
	doc, err := h.queries.GetDocumentBinaryData(c.Request.Context(), c.Param("admin"), c.Param("doc"))
	h.binary(c, doc, err)
}

func (h *AccountingHandlers) SearchContacts(c *gin.Context) {
	v, err := h.queries.SearchContacts(c.Request.Context(), c.Param("admin"), c.Query("q"))
	respond(h, c, v, err)
}

// binary streams an archived file with its own content type
func (h *AccountingHandlers) binary(c *gin.Context, doc *entity.BinaryDocument, err error) {
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if doc.FileName != "" {
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.FileName))
	}
	c.Data(http.StatusOK, mimeType, doc.Content)
}
