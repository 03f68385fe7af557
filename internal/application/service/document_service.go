package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/application/workflow"
	"github.com/garyjia/invoice-booking/internal/booking"
	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-booking/internal/domain/workflow"
	"github.com/garyjia/invoice-booking/internal/extraction"
	"github.com/garyjia/invoice-booking/internal/recognition"
	"github.com/garyjia/invoice-booking/pkg/utils"
	"github.com/google/uuid"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Recognizer turns a stored source file into text with confidence
type Recognizer interface {
	Recognize(ctx context.Context, content []byte, mimeType string) (*recognition.Result, error)
}

// Booker posts validated documents to the accounting system
type Booker interface {
	ResolveAdministration(id string) (string, error)
	Defaults(opts booking.Options) booking.Options
	UploadDocument(ctx context.Context, administrationID string, content []byte, meta port.UploadMetadata) (string, error)
	CreateBooking(ctx context.Context, data *entity.ExtractedData, externalDocumentID string, opts booking.Options) (string, error)
}

// Default and maximum page size of List
const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

// DefaultMaxUploadSize is used when the configured limit is not positive
const DefaultMaxUploadSize int64 = 10 << 20

// IntakeRequest is one uploaded source file
type IntakeRequest struct {
	Filename string
	MimeType string
	Content  []byte
	Actor    string
}

// ValidationRequest is a human review of a document's extracted data
type ValidationRequest struct {
	ValidatedBy string
	Data        map[string]interface{}
	Notes       string
}

// BookRequest carries the accounting choices of one booking. Empty fields
// fall back to the configured defaults.
type BookRequest struct {
	AdministrationID string
	GLAccount        string
	VATGLAccount     string
	VATCode          string
	Actor            string
}

// ListQuery selects one page of documents
type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

// DocumentPage is one page of a document listing
type DocumentPage struct {
	Items  []*entity.Document `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// DocumentService drives documents from intake to booking
type DocumentService interface {
	// Intake stores a file and creates its PENDING document
	Intake(ctx context.Context, req IntakeRequest) (*entity.Document, error)
	// Advance recognises and extracts a PENDING (or retried) document
	Advance(ctx context.Context, documentID, actor string) (*entity.Document, error)
	// SubmitValidation records a human validation of an EXTRACTED document
	SubmitValidation(ctx context.Context, documentID string, req ValidationRequest) (*entity.Document, error)
	// Book uploads a VALIDATED document and books it; an UPLOADED document resumes at the booking step
	Book(ctx context.Context, documentID string, req BookRequest) (*entity.Document, error)
	// Retry moves an ERROR document back to PROCESSING
	Retry(ctx context.Context, documentID, actor string) (*entity.Document, error)

	Get(ctx context.Context, documentID string) (*entity.Document, error)
	List(ctx context.Context, query ListQuery) (*DocumentPage, error)
	AuditTrail(ctx context.Context, documentID string) ([]*entity.AuditLogEntry, error)
	Validations(ctx context.Context, documentID string) ([]*entity.ValidationRecord, error)
}

type documentServiceImpl struct {
	documentRepo   port.DocumentRepository
	auditRepo      port.AuditRepository
	validationRepo port.ValidationRepository
	lifecycle      workflow.Lifecycle
	storage        port.FileStorage
	recognizer     Recognizer
	booker         Booker
	logger         Logger

	maxUploadSize int64
	now           func() time.Time

	// operations hold this lock across their external calls; the lifecycle
	// engine takes its own lock per transition inside it
	ops *workflow.KeyedLocker
}

// DocumentServiceConfig holds the service limits
type DocumentServiceConfig struct {
	MaxUploadSize int64
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	documentRepo port.DocumentRepository,
	auditRepo port.AuditRepository,
	validationRepo port.ValidationRepository,
	lifecycle workflow.Lifecycle,
	storage port.FileStorage,
	recognizer Recognizer,
	booker Booker,
	config DocumentServiceConfig,
	logger Logger,
) DocumentService {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = DefaultMaxUploadSize
	}
	return &documentServiceImpl{
		documentRepo:   documentRepo,
		auditRepo:      auditRepo,
		validationRepo: validationRepo,
		lifecycle:      lifecycle,
		storage:        storage,
		recognizer:     recognizer,
		booker:         booker,
		logger:         logger,
		maxUploadSize:  config.MaxUploadSize,
		now:            func() time.Time { return time.Now().UTC() },
		ops:            workflow.NewKeyedLocker(),
	}
}

// Intake stores the file under <document id>/<sanitised name> and creates the document
func (s *documentServiceImpl) Intake(ctx context.Context, req IntakeRequest) (*entity.Document, error) {
	const op = "intake"

	size := int64(len(req.Content))
	if size == 0 {
		return nil, apperr.New(apperr.InvalidInput, op, "file is empty")
	}
	if size > s.maxUploadSize {
		return nil, apperr.Newf(apperr.InvalidInput, op, "file is %d bytes, the limit is %d", size, s.maxUploadSize)
	}
	mimeType := strings.ToLower(strings.TrimSpace(req.MimeType))
	if !recognition.IsSupported(mimeType) {
		return nil, apperr.Newf(apperr.InvalidInput, op, "unsupported file type %q", req.MimeType)
	}

	sum := sha256.Sum256(req.Content)
	id := uuid.NewString()
	filename := utils.SanitizeFilename(req.Filename)
	storagePath := path.Join(id, filename)

	if err := s.storage.Save(ctx, storagePath, req.Content); err != nil {
		s.logger.Error("Failed to store upload", "error", err, "filename", req.Filename)
		return nil, fmt.Errorf("store file: %w", err)
	}

	doc := &entity.Document{
		ID:               id,
		Filename:         filename,
		OriginalFilename: req.Filename,
		StoragePath:      storagePath,
		MimeType:         mimeType,
		FileSize:         size,
		ContentHash:      hex.EncodeToString(sum[:]),
		Status:           domainwf.StatePending.String(),
	}
	if err := s.lifecycle.Create(ctx, doc, req.Actor); err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), storagePath); delErr != nil {
			s.logger.Error("Failed to remove orphaned upload", "error", delErr, "path", storagePath)
		}
		s.logger.Error("Failed to create document", "error", err, "filename", req.Filename)
		return nil, err
	}

	s.logger.Info("Document received", "document_id", id, "filename", filename, "size", size)
	return doc, nil
}

// Advance runs recognition and extraction. It starts a PENDING document and
// resumes one that a retry left in PROCESSING. Recognition failures move the
// document to ERROR before the error is returned.
func (s *documentServiceImpl) Advance(ctx context.Context, documentID, actor string) (*entity.Document, error) {
	unlock := s.ops.Lock(documentID)
	defer unlock()

	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	switch domainwf.State(doc.Status) {
	case domainwf.StatePending:
		if doc, err = s.lifecycle.StartProcessing(ctx, documentID, actor); err != nil {
			return nil, err
		}
	case domainwf.StateProcessing:
		s.logger.Info("Resuming processing", "document_id", documentID)
	default:
		return nil, apperr.Newf(apperr.StateConflict, "advance",
			"document %s is %s, only PENDING or PROCESSING documents can be processed", documentID, doc.Status)
	}

	content, err := s.storage.Read(ctx, doc.StoragePath)
	if err != nil {
		return nil, s.fail(ctx, documentID, fmt.Errorf("read stored file: %w", err), actor)
	}

	result, err := s.recognizer.Recognize(ctx, content, doc.MimeType)
	if err != nil {
		return nil, s.fail(ctx, documentID, err, actor)
	}

	data := extraction.Extract(result.Text, result.Confidence)
	s.logger.Info("Fields extracted",
		"document_id", documentID,
		"fields", len(data.FieldConfidence),
		"confidence", result.Confidence.Overall)

	return s.lifecycle.CompleteExtraction(ctx, documentID, data, actor)
}

// SubmitValidation checks the payload and records it
func (s *documentServiceImpl) SubmitValidation(ctx context.Context, documentID string, req ValidationRequest) (*entity.Document, error) {
	if strings.TrimSpace(req.ValidatedBy) == "" {
		return nil, apperr.New(apperr.InvalidInput, "submit validation", "validated_by is required")
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}
	if err := checkValidationData(req.Data); err != nil {
		return nil, err
	}

	unlock := s.ops.Lock(documentID)
	defer unlock()

	return s.lifecycle.Validate(ctx, documentID, &entity.ValidationRecord{
		ValidatedBy:    strings.TrimSpace(req.ValidatedBy),
		ValidationData: req.Data,
		Notes:          utils.SanitizeString(req.Notes),
	})
}

// Book uploads the source file, books the merged validation data and records
// both external ids. A VALIDATED document is uploaded first; an UPLOADED one
// resumes at the booking step with its stored external document id.
// Status changes are committed even when ctx is cancelled mid-call, and any
// failure after the precheck moves the document to ERROR before the
// classified error is returned.
func (s *documentServiceImpl) Book(ctx context.Context, documentID string, req BookRequest) (*entity.Document, error) {
	unlock := s.ops.Lock(documentID)
	defer unlock()

	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	status := domainwf.State(doc.Status)
	if status != domainwf.StateValidated && status != domainwf.StateUploaded {
		return nil, apperr.Newf(apperr.ValidationRequired, "book",
			"document %s is %s, it must be VALIDATED before booking", documentID, doc.Status)
	}

	adminID, err := s.booker.ResolveAdministration(req.AdministrationID)
	if err != nil {
		return nil, err
	}

	record, err := s.validationRepo.Latest(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load validation: %w", err)
	}
	var payload map[string]interface{}
	if record != nil {
		payload = record.ValidationData
	}

	opts := s.booker.Defaults(booking.Options{
		AdministrationID: adminID,
		DocumentID:       doc.ID,
		ContentHash:      doc.ContentHash,
		GLAccount:        req.GLAccount,
		VATGLAccount:     req.VATGLAccount,
		VATCode:          req.VATCode,
	})

	data, err := MergeValidation(doc.ExtractedData, payload)
	if err == nil {
		_, err = booking.BuildTransaction(data, "", opts, s.now())
	}
	if err != nil {
		return nil, s.fail(ctx, documentID, err, req.Actor)
	}

	// once an external call has been made the outcome must be recorded, so
	// status writes do not inherit the caller's cancellation
	commitCtx := context.WithoutCancel(ctx)

	externalDocumentID := entity.StringValue(doc.ExternalDocumentID)
	switch {
	case status == domainwf.StateUploaded:
		if externalDocumentID == "" {
			return nil, s.fail(ctx, documentID, errors.New("uploaded document has no external document id"), req.Actor)
		}
		s.logger.Info("Resuming booking of uploaded document", "document_id", documentID, "external_document_id", externalDocumentID)
	case externalDocumentID != "":
		s.logger.Info("Reusing uploaded document", "document_id", documentID, "external_document_id", externalDocumentID)
	default:
		content, err := s.storage.Read(ctx, doc.StoragePath)
		if err != nil {
			return nil, s.fail(ctx, documentID, fmt.Errorf("read stored file: %w", err), req.Actor)
		}
		externalDocumentID, err = s.booker.UploadDocument(ctx, adminID, content, uploadMetadata(doc, data))
		if err != nil {
			return nil, s.fail(ctx, documentID, err, req.Actor)
		}
	}

	if status == domainwf.StateValidated {
		if _, err := s.lifecycle.CompleteUpload(commitCtx, documentID, externalDocumentID, req.Actor); err != nil {
			return nil, s.fail(ctx, documentID, fmt.Errorf("record upload %s: %w", externalDocumentID, err), req.Actor)
		}
	}

	bookingID, err := s.booker.CreateBooking(ctx, data, externalDocumentID, opts)
	if err != nil {
		return nil, s.fail(ctx, documentID, err, req.Actor)
	}

	booked, err := s.lifecycle.CompleteBooking(commitCtx, documentID, bookingID, req.Actor)
	if err != nil {
		return nil, s.fail(ctx, documentID, fmt.Errorf("record booking %s: %w", bookingID, err), req.Actor)
	}
	return booked, nil
}

func (s *documentServiceImpl) Retry(ctx context.Context, documentID, actor string) (*entity.Document, error) {
	unlock := s.ops.Lock(documentID)
	defer unlock()

	return s.lifecycle.Retry(ctx, documentID, actor)
}

func (s *documentServiceImpl) Get(ctx context.Context, documentID string) (*entity.Document, error) {
	return s.load(ctx, documentID)
}

// List returns one page of documents, newest first
func (s *documentServiceImpl) List(ctx context.Context, query ListQuery) (*DocumentPage, error) {
	if query.Status != "" && !domainwf.State(query.Status).IsValid() {
		return nil, apperr.Newf(apperr.InvalidInput, "list documents", "unknown status %q", query.Status)
	}
	if query.Offset < 0 {
		return nil, apperr.New(apperr.InvalidInput, "list documents", "offset must not be negative")
	}
	if query.Limit <= 0 {
		query.Limit = DefaultListLimit
	}
	if query.Limit > MaxListLimit {
		query.Limit = MaxListLimit
	}

	items, err := s.documentRepo.List(ctx, query.Status, query.Limit, query.Offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	total, err := s.documentRepo.Count(ctx, query.Status)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if items == nil {
		items = []*entity.Document{}
	}
	return &DocumentPage{Items: items, Total: total, Limit: query.Limit, Offset: query.Offset}, nil
}

// AuditTrail returns the audit entries of a document in the order they were written
func (s *documentServiceImpl) AuditTrail(ctx context.Context, documentID string) ([]*entity.AuditLogEntry, error) {
	if _, err := s.load(ctx, documentID); err != nil {
		return nil, err
	}
	entries, err := s.auditRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

func (s *documentServiceImpl) Validations(ctx context.Context, documentID string) ([]*entity.ValidationRecord, error) {
	if _, err := s.load(ctx, documentID); err != nil {
		return nil, err
	}
	records, err := s.validationRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list validations: %w", err)
	}
	return records, nil
}

func (s *documentServiceImpl) load(ctx context.Context, documentID string) (*entity.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc == nil {
		return nil, apperr.Newf(apperr.NotFound, "get document", "document %s not found", documentID)
	}
	return doc, nil
}

// fail records cause on the document and returns it. The ERROR transition is
// committed even when ctx was cancelled, so the document is never left mid-step.
func (s *documentServiceImpl) fail(ctx context.Context, documentID string, cause error, actor string) error {
	message := cause.Error()
	if errors.Is(cause, context.Canceled) {
		message = "processing cancelled: " + message
	}

	if _, err := s.lifecycle.Fail(context.WithoutCancel(ctx), documentID, message, actor); err != nil {
		s.logger.Error("Failed to record document failure",
			"document_id", documentID,
			"cause", cause,
			"error", err)
		return errors.Join(cause, err)
	}

	s.logger.Error("Document failed", "document_id", documentID, "kind", apperr.KindOf(cause), "error", cause)
	return cause
}

func uploadMetadata(doc *entity.Document, data *entity.ExtractedData) port.UploadMetadata {
	meta := port.UploadMetadata{
		FileName:     doc.Filename,
		MimeType:     doc.MimeType,
		Name:         doc.OriginalFilename,
		DocumentType: entity.DefaultDocumentType,
	}
	if data.Description != nil {
		meta.Description = *data.Description
	}
	if data.InvoiceNumber != nil {
		meta.Name = *data.InvoiceNumber
	}
	if data.InvoiceDate != nil {
		meta.Date = *data.InvoiceDate
	}
	return meta
}
