package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-booking/internal/application/service"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
)

// actorHeader names the caller recorded in the audit trail
const actorHeader = "X-Actor"

// DocumentHandlers serves the document lifecycle endpoints
type DocumentHandlers struct {
	documents     service.DocumentService
	export        service.ExportService
	maxUploadSize int64
	logger        Logger
}

// NewDocumentHandlers creates a new DocumentHandlers instance
func NewDocumentHandlers(documents service.DocumentService, export service.ExportService, maxUploadSize int64, logger Logger) *DocumentHandlers {
	return &DocumentHandlers{
		documents:     documents,
		export:        export,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// ValidateRequest is the body of POST /api/documents/:id/validate
type ValidateRequest struct {
	ValidatedBy string                 `json:"validated_by"`
	Data        map[string]interface{} `json:"data"`
	Notes       string                 `json:"notes"`
}

// BookRequest is the optional body of POST /api/documents/:id/book
type BookRequest struct {
	AdministrationID string `json:"administration_id"`
	GLAccount        string `json:"gl_account"`
	VATGLAccount     string `json:"vat_gl_account"`
	VATCode          string `json:"vat_code"`
}

func actor(c *gin.Context) string {
	if a := strings.TrimSpace(c.GetHeader(actorHeader)); a != "" {
		return a
	}
	return entity.SystemActor
}

// Upload handles POST /api/documents/upload
func (h *DocumentHandlers) Upload(c *gin.Context) {
	// multipart framing on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			badRequest(c, fmt.Sprintf("file exceeds the maximum size of %d bytes", h.maxUploadSize))
			return
		}
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	if fileHeader.Size > h.maxUploadSize {
		badRequest(c, fmt.Sprintf("file exceeds the maximum size of %d bytes", h.maxUploadSize))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "failed to read uploaded file")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "failed to read uploaded file")
		return
	}

	doc, err := h.documents.Intake(c.Request.Context(), service.IntakeRequest{
		Filename: fileHeader.Filename,
		MimeType: detectMimeType(fileHeader.Header.Get("Content-Type"), content),
		Content:  content,
		Actor:    actor(c),
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	h.logger.Info("Document uploaded", "document_id", doc.ID, "filename", doc.OriginalFilename, "size", doc.FileSize)
	c.JSON(http.StatusCreated, Response{Success: true, Data: doc})
}

// detectMimeType trusts a specific declared type and sniffs the content otherwise
func detectMimeType(declared string, content []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(content))
	return mt
}

// List handles GET /api/documents
func (h *DocumentHandlers) List(c *gin.Context) {
	offset, err := queryInt(c, 0, "offset", "skip")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	limit, err := queryInt(c, service.DefaultListLimit, "limit")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := h.documents.List(c.Request.Context(), service.ListQuery{
		Status: strings.ToUpper(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, page)
}

// queryInt reads the first present of names as an integer
func queryInt(c *gin.Context, def int, names ...string) (int, error) {
	for _, name := range names {
		raw, present := c.GetQuery(name)
		if !present || raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("query parameter %s must be an integer", name)
		}
		return v, nil
	}
	return def, nil
}

// Get handles GET /api/documents/:id
func (h *DocumentHandlers) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, doc)
}

// AuditTrail handles GET /api/documents/:id/audit
func (h *DocumentHandlers) AuditTrail(c *gin.Context) {
	entries, err := h.documents.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*entity.AuditLogEntry{}
	}
	ok(c, entries)
}

// Validations handles GET /api/documents/:id/validations
func (h *DocumentHandlers) Validations(c *gin.Context) {
	records, err := h.documents.Validations(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	if records == nil {
		records = []*entity.ValidationRecord{}
	}
	ok(c, records)
}

// Process handles POST /api/documents/:id/process
func (h *DocumentHandlers) Process(c *gin.Context) {
	doc, err := h.documents.Advance(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, doc)
}

// Validate handles POST /api/documents/:id/validate. Numbers in data are
// kept as their literal text so amounts stay exact.
func (h *DocumentHandlers) Validate(c *gin.Context) {
	var req ValidateRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	doc, err := h.documents.SubmitValidation(c.Request.Context(), c.Param("id"), service.ValidationRequest{
		ValidatedBy: req.ValidatedBy,
		Data:        req.Data,
		Notes:       req.Notes,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, doc)
}

// Book handles POST /api/documents/:id/book and its upload-to-yuki alias
func (h *DocumentHandlers) Book(c *gin.Context) {
	var req BookRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	doc, err := h.documents.Book(c.Request.Context(), c.Param("id"), service.BookRequest{
		AdministrationID: req.AdministrationID,
		GLAccount:        req.GLAccount,
		VATGLAccount:     req.VATGLAccount,
		VATCode:          req.VATCode,
		Actor:            actor(c),
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, doc)
}

// Retry handles POST /api/documents/:id/retry
func (h *DocumentHandlers) Retry(c *gin.Context) {
	doc, err := h.documents.Retry(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, doc)
}

// Export handles GET /api/documents/export
func (h *DocumentHandlers) Export(c *gin.Context) {
	var buf bytes.Buffer
	n, err := h.export.Export(c.Request.Context(), &buf, strings.ToUpper(c.Query("status")))
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("documents-%s%s", time.Now().UTC().Format("20060102-150405"), h.export.FileExtension())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("X-Document-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, h.export.ContentType(), buf.Bytes())
}
