package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/application/workflow"
	"github.com/garyjia/invoice-booking/internal/booking"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/garyjia/invoice-booking/internal/recognition"
	"github.com/stretchr/testify/mock"
)

type fakeDocumentRepo struct {
	mu    sync.Mutex
	docs  map[string]*entity.Document
	order []string

	// failSaveStatus makes Save reject documents moving to that status
	failSaveStatus string
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[string]*entity.Document)}
}

func (r *fakeDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; ok {
		return errors.New("duplicate id")
	}
	r.docs[doc.ID] = doc.Clone()
	r.order = append(r.order, doc.ID)
	return nil
}

func (r *fakeDocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

func (r *fakeDocumentRepo) Save(ctx context.Context, doc *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSaveStatus != "" && doc.Status == r.failSaveStatus {
		return errors.New("database is locked")
	}
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *fakeDocumentRepo) filtered(status string) []*entity.Document {
	var out []*entity.Document
	for i := len(r.order) - 1; i >= 0; i-- {
		doc := r.docs[r.order[i]]
		if status == "" || doc.Status == status {
			out = append(out, doc.Clone())
		}
	}
	return out
}

func (r *fakeDocumentRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filtered(status)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *fakeDocumentRepo) Count(ctx context.Context, status string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.filtered(status)), nil
}

func (r *fakeDocumentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filtered(status)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*entity.AuditLogEntry
}

func (r *fakeAuditRepo) Append(ctx context.Context, entry *entity.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.AuditLogEntry
	for _, e := range r.entries {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeValidationRepo struct {
	mu      sync.Mutex
	records []*entity.ValidationRecord
}

func (r *fakeValidationRepo) Append(ctx context.Context, record *entity.ValidationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *fakeValidationRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.ValidationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ValidationRecord
	for _, rec := range r.records {
		if rec.DocumentID == documentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeValidationRepo) Latest(ctx context.Context, documentID string) (*entity.ValidationRecord, error) {
	records, _ := r.ListByDocument(ctx, documentID)
	if len(records) == 0 {
		return nil, nil
	}
	return records[len(records)-1], nil
}

// fakeTxManager refuses to begin on a done context, like sql.DB.BeginTx
type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

type fakeStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (s *fakeStorage) Save(ctx context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = append([]byte(nil), content...)
	return nil
}

func (s *fakeStorage) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return content, nil
}

func (s *fakeStorage) Exists(ctx context.Context, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *fakeStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *fakeStorage) GetFullPath(relativePath string) string {
	return "/uploads/" + relativePath
}

type mockRecognizer struct {
	mock.Mock
}

func (m *mockRecognizer) Recognize(ctx context.Context, content []byte, mimeType string) (*recognition.Result, error) {
	args := m.Called(ctx, content, mimeType)
	if r := args.Get(0); r != nil {
		return r.(*recognition.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeBooker records calls and returns scripted results
type fakeBooker struct {
	mu sync.Mutex

	uploadErr   error
	bookingErrs []error
	onBooking   func()

	uploads     int
	bookings    []*entity.ExtractedData
	options     []booking.Options
	externalIDs []string
}

func (b *fakeBooker) ResolveAdministration(id string) (string, error) {
	if id == "" {
		return "admin-default", nil
	}
	return id, nil
}

func (b *fakeBooker) Defaults(opts booking.Options) booking.Options {
	if opts.GLAccount == "" {
		opts.GLAccount = "4000"
	}
	if opts.VATGLAccount == "" {
		opts.VATGLAccount = "1510"
	}
	return opts
}

func (b *fakeBooker) UploadDocument(ctx context.Context, administrationID string, content []byte, meta port.UploadMetadata) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads++
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	return "ext-doc-1", nil
}

func (b *fakeBooker) CreateBooking(ctx context.Context, data *entity.ExtractedData, externalDocumentID string, opts booking.Options) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bookings = append(b.bookings, data)
	b.options = append(b.options, opts)
	b.externalIDs = append(b.externalIDs, externalDocumentID)
	if b.onBooking != nil {
		b.onBooking()
	}
	if len(b.bookingErrs) > 0 {
		err := b.bookingErrs[0]
		b.bookingErrs = b.bookingErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "booking-1", nil
}

type fakeExporter struct {
	exported []*entity.Document
}

func (e *fakeExporter) Export(ctx context.Context, w io.Writer, docs []*entity.Document) error {
	e.exported = docs
	var buf bytes.Buffer
	for _, d := range docs {
		buf.WriteString(d.ID + "\n")
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (e *fakeExporter) ContentType() string   { return "text/plain" }
func (e *fakeExporter) FileExtension() string { return ".txt" }

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type harness struct {
	service     DocumentService
	docs        *fakeDocumentRepo
	audit       *fakeAuditRepo
	validations *fakeValidationRepo
	storage     *fakeStorage
	recognizer  *mockRecognizer
	booker      *fakeBooker
}

func newHarness(maxUploadSize int64) *harness {
	h := &harness{
		docs:        newFakeDocumentRepo(),
		audit:       &fakeAuditRepo{},
		validations: &fakeValidationRepo{},
		storage:     newFakeStorage(),
		recognizer:  &mockRecognizer{},
		booker:      &fakeBooker{},
	}
	engine := workflow.NewEngine(h.docs, h.audit, h.validations, fakeTxManager{})
	h.service = NewDocumentService(h.docs, h.audit, h.validations, engine, h.storage,
		h.recognizer, h.booker, DocumentServiceConfig{MaxUploadSize: maxUploadSize}, nopLogger{})
	return h
}

func (h *harness) actions(documentID string) []string {
	entries, _ := h.audit.ListByDocument(context.Background(), documentID)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}
