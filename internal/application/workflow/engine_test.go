package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/invoice-booking/internal/application/dispatcher"
	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/garyjia/invoice-booking/internal/domain/event"
	domainwf "github.com/garyjia/invoice-booking/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// Mock implementations

type mockDocumentRepo struct {
	mu        sync.Mutex
	documents map[string]*entity.Document
	saveErr   error
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{documents: make(map[string]*entity.Document)}
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.documents[doc.ID]; exists {
		return errors.New("duplicate document")
	}
	m.documents[doc.ID] = doc.Clone()
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, exists := m.documents[id]
	if !exists {
		return nil, nil
	}
	return doc.Clone(), nil
}

func (m *mockDocumentRepo) Save(ctx context.Context, doc *entity.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.documents[doc.ID] = doc.Clone()
	return nil
}

func (m *mockDocumentRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.Document, error) {
	return nil, nil
}

func (m *mockDocumentRepo) Count(ctx context.Context, status string) (int, error) {
	return 0, nil
}

func (m *mockDocumentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error) {
	return nil, nil
}

func (m *mockDocumentRepo) snapshot() map[string]*entity.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]*entity.Document, len(m.documents))
	for k, v := range m.documents {
		cp[k] = v.Clone()
	}
	return cp
}

func (m *mockDocumentRepo) restore(s map[string]*entity.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = s
}

type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*entity.AuditLogEntry
	appendErr error
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *entity.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.AuditLogEntry
	for _, e := range m.entries {
		if e.DocumentID == documentID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockAuditRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type mockValidationRepo struct {
	mu      sync.Mutex
	records []*entity.ValidationRecord
}

func (m *mockValidationRepo) Append(ctx context.Context, record *entity.ValidationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockValidationRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.ValidationRecord, error) {
	return m.records, nil
}

func (m *mockValidationRepo) Latest(ctx context.Context, documentID string) (*entity.ValidationRecord, error) {
	if len(m.records) == 0 {
		return nil, nil
	}
	return m.records[len(m.records)-1], nil
}

// mockTxManager restores the document and audit stores when fn fails
type mockTxManager struct {
	docs  *mockDocumentRepo
	audit *mockAuditRepo
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	docs := m.docs.snapshot()
	m.audit.mu.Lock()
	auditLen := len(m.audit.entries)
	m.audit.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.docs.restore(docs)
		m.audit.mu.Lock()
		m.audit.entries = m.audit.entries[:auditLen]
		m.audit.mu.Unlock()
		return err
	}
	return nil
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeAll(name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) Handlers(eventType event.Type) []string { return nil }

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]event.Type, len(m.events))
	for i, e := range m.events {
		types[i] = e.Type
	}
	return types
}

type fixture struct {
	engine      Lifecycle
	docs        *mockDocumentRepo
	audit       *mockAuditRepo
	validations *mockValidationRepo
	dispatcher  *mockDispatcher
}

func newFixture() *fixture {
	docs := newMockDocumentRepo()
	audit := &mockAuditRepo{}
	validations := &mockValidationRepo{}
	d := &mockDispatcher{}
	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	engine := NewEngine(docs, audit, validations, &mockTxManager{docs: docs, audit: audit},
		WithDispatcher(d),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	return &fixture{engine: engine, docs: docs, audit: audit, validations: validations, dispatcher: d}
}

func (f *fixture) seed(t *testing.T, id string, status domainwf.State) {
	t.Helper()
	doc := &entity.Document{ID: id, OriginalFilename: id + ".pdf", Status: status.String()}
	if status != domainwf.StatePending && status != domainwf.StateProcessing {
		doc.ExtractedData = &entity.ExtractedData{TotalAmount: decimal.NewNullDecimal(decimal.NewFromInt(121))}
	}
	if status == domainwf.StateUploaded {
		doc.ExternalDocumentID = entity.StringPtr("ext-1")
	}
	if status == domainwf.StateBooked {
		doc.ExternalDocumentID = entity.StringPtr("ext-1")
		doc.ExternalBookingID = entity.StringPtr("booking-1")
	}
	if status == domainwf.StateError {
		doc.ErrorMessage = entity.StringPtr("connection refused")
	}
	if err := f.docs.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

// Test factory

func TestBuildDocumentStateMachine(t *testing.T) {
	tests := []struct {
		name         string
		initialState domainwf.State
		trigger      domainwf.Trigger
		wantState    domainwf.State
		wantError    bool
	}{
		{"PENDING -> PROCESSING", domainwf.StatePending, domainwf.TriggerStartProcessing, domainwf.StateProcessing, false},
		{"PROCESSING -> EXTRACTED", domainwf.StateProcessing, domainwf.TriggerCompleteExtraction, domainwf.StateExtracted, false},
		{"EXTRACTED -> VALIDATED", domainwf.StateExtracted, domainwf.TriggerValidate, domainwf.StateValidated, false},
		{"VALIDATED -> UPLOADED", domainwf.StateValidated, domainwf.TriggerCompleteUpload, domainwf.StateUploaded, false},
		{"UPLOADED -> BOOKED", domainwf.StateUploaded, domainwf.TriggerCompleteBooking, domainwf.StateBooked, false},
		{"ERROR -> PROCESSING on RETRY", domainwf.StateError, domainwf.TriggerRetry, domainwf.StateProcessing, false},
		{"ERROR -> ERROR not allowed", domainwf.StateError, domainwf.TriggerFail, domainwf.StateError, true},
		{"PENDING -> EXTRACTED not allowed", domainwf.StatePending, domainwf.TriggerCompleteExtraction, domainwf.StatePending, true},
		{"EXTRACTED -> UPLOADED not allowed", domainwf.StateExtracted, domainwf.TriggerCompleteUpload, domainwf.StateExtracted, true},
		{"VALIDATED -> BOOKED skips upload", domainwf.StateValidated, domainwf.TriggerCompleteBooking, domainwf.StateValidated, true},
		{"PROCESSING RETRY not allowed", domainwf.StateProcessing, domainwf.TriggerRetry, domainwf.StateProcessing, true},
		{"BOOKED is terminal", domainwf.StateBooked, domainwf.TriggerFail, domainwf.StateBooked, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := BuildDocumentStateMachine(tt.initialState)
			err := machine.Fire(tt.trigger)

			if tt.wantError {
				if !errors.Is(err, domainwf.ErrInvalidTransition) {
					t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
				}
			} else if err != nil {
				t.Errorf("Fire() unexpected error: %v", err)
			}
			if machine.State() != tt.wantState {
				t.Errorf("State() = %v, want %v", machine.State(), tt.wantState)
			}
		})
	}
}

func TestBuildDocumentStateMachine_FailFromEveryActiveState(t *testing.T) {
	for _, s := range domainwf.AllStates {
		want := s != domainwf.StateBooked && s != domainwf.StateError
		err := BuildDocumentStateMachine(s).Fire(domainwf.TriggerFail)
		if got := err == nil; got != want {
			t.Errorf("Fire(FAIL) from %s permitted = %v, want %v", s, got, want)
		}
	}
}

// Test engine

func TestEngine_FullLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	doc := &entity.Document{ID: "doc-1", OriginalFilename: "invoice.pdf", MimeType: "application/pdf"}
	if err := f.engine.Create(ctx, doc, ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	data := &entity.ExtractedData{
		InvoiceNumber: entity.StringPtr("INV-001"),
		TotalAmount:   decimal.NewNullDecimal(decimal.RequireFromString("121.00")),
		Confidence:    entity.ConfidenceScores{Overall: 91},
	}

	steps := []struct {
		name string
		run  func() (*entity.Document, error)
		want domainwf.State
	}{
		{"start", func() (*entity.Document, error) { return f.engine.StartProcessing(ctx, "doc-1", "") }, domainwf.StateProcessing},
		{"extract", func() (*entity.Document, error) { return f.engine.CompleteExtraction(ctx, "doc-1", data, "") }, domainwf.StateExtracted},
		{"validate", func() (*entity.Document, error) {
			return f.engine.Validate(ctx, "doc-1", &entity.ValidationRecord{ValidatedBy: "alice", ValidationData: map[string]interface{}{"total_amount": "121.00"}})
		}, domainwf.StateValidated},
		{"upload", func() (*entity.Document, error) { return f.engine.CompleteUpload(ctx, "doc-1", "ext-9", "") }, domainwf.StateUploaded},
		{"book", func() (*entity.Document, error) { return f.engine.CompleteBooking(ctx, "doc-1", "booking-9", "") }, domainwf.StateBooked},
	}

	for _, step := range steps {
		got, err := step.run()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step.name, err)
		}
		if got.Status != step.want.String() {
			t.Fatalf("%s: status = %s, want %s", step.name, got.Status, step.want)
		}
	}

	stored, _ := f.docs.GetByID(ctx, "doc-1")
	if entity.StringValue(stored.ExternalBookingID) != "booking-9" || entity.StringValue(stored.ExternalDocumentID) != "ext-9" {
		t.Errorf("external ids not stored: %+v", stored)
	}
	if stored.ConfidenceScores == nil || stored.ConfidenceScores.Overall != 91 {
		t.Errorf("confidence scores not stored: %+v", stored.ConfidenceScores)
	}
	if entity.StringValue(stored.ExtractedData.InvoiceNumber) != "INV-001" {
		t.Error("validation must not replace extracted data")
	}

	entries, _ := f.audit.ListByDocument(ctx, "doc-1")
	wantActions := []string{
		"document.created",
		"document.start_processing",
		"document.complete_extraction",
		"document.validate",
		"document.complete_upload",
		"document.complete_booking",
	}
	if len(entries) != len(wantActions) {
		t.Fatalf("audit entries = %d, want %d", len(entries), len(wantActions))
	}
	for i, want := range wantActions {
		if entries[i].Action != want {
			t.Errorf("entry %d action = %s, want %s", i, entries[i].Action, want)
		}
		if i > 0 && !entries[i].PerformedAt.After(entries[i-1].PerformedAt) {
			t.Errorf("entry %d is not after entry %d", i, i-1)
		}
	}
	if entries[3].PerformedBy != "alice" || entries[1].PerformedBy != entity.SystemActor {
		t.Errorf("unexpected actors: %s, %s", entries[3].PerformedBy, entries[1].PerformedBy)
	}
	if len(f.validations.records) != 1 || f.validations.records[0].DocumentID != "doc-1" {
		t.Errorf("validation record not appended: %+v", f.validations.records)
	}

	types := f.dispatcher.types()
	if types[0] != event.TypeDocumentCreated || types[len(types)-1] != event.TypeDocumentBooked {
		t.Errorf("unexpected events: %v", types)
	}
}

func TestEngine_IllegalTransitionChangesNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, "doc-1", domainwf.StatePending)
	before, _ := f.docs.GetByID(ctx, "doc-1")

	_, err := f.engine.Validate(ctx, "doc-1", &entity.ValidationRecord{ValidatedBy: "bob"})
	if !apperr.IsKind(err, apperr.StateConflict) {
		t.Fatalf("error = %v, want StateConflict", err)
	}

	after, _ := f.docs.GetByID(ctx, "doc-1")
	if after.Status != before.Status || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("document changed: %+v", after)
	}
	if f.audit.count() != 0 || len(f.validations.records) != 0 || len(f.dispatcher.types()) != 0 {
		t.Error("illegal transition must not write audit, validation or events")
	}
}

func TestEngine_StateConflicts(t *testing.T) {
	tests := []struct {
		name   string
		status domainwf.State
		run    func(e Lifecycle) error
	}{
		{"fail from BOOKED", domainwf.StateBooked, func(e Lifecycle) error {
			_, err := e.Fail(context.Background(), "doc-1", "late failure", "")
			return err
		}},
		{"fail twice", domainwf.StateError, func(e Lifecycle) error {
			_, err := e.Fail(context.Background(), "doc-1", "second failure", "")
			return err
		}},
		{"retry from VALIDATED", domainwf.StateValidated, func(e Lifecycle) error {
			_, err := e.Retry(context.Background(), "doc-1", "")
			return err
		}},
		{"booking from VALIDATED", domainwf.StateValidated, func(e Lifecycle) error {
			_, err := e.CompleteBooking(context.Background(), "doc-1", "b-1", "")
			return err
		}},
		{"extraction twice", domainwf.StateExtracted, func(e Lifecycle) error {
			_, err := e.CompleteExtraction(context.Background(), "doc-1", &entity.ExtractedData{}, "")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.seed(t, "doc-1", tt.status)

			if err := tt.run(f.engine); !apperr.IsKind(err, apperr.StateConflict) {
				t.Errorf("error = %v, want StateConflict", err)
			}
			state, _ := f.engine.GetCurrentState(context.Background(), "doc-1")
			if state != tt.status {
				t.Errorf("state = %s, want %s", state, tt.status)
			}
		})
	}
}

func TestEngine_StateConflictNamesPermittedTriggers(t *testing.T) {
	f := newFixture()
	f.seed(t, "doc-1", domainwf.StateError)

	_, err := f.engine.Fail(context.Background(), "doc-1", "second failure", "")
	if !apperr.IsKind(err, apperr.StateConflict) {
		t.Fatalf("error = %v, want StateConflict", err)
	}
	if !strings.Contains(err.Error(), "permitted: RETRY") {
		t.Errorf("error %q should name the permitted triggers", err.Error())
	}
}

func TestEngine_ValidateRequiresExtractedData(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.docs.Create(ctx, &entity.Document{ID: "doc-1", Status: domainwf.StateExtracted.String()}); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.Validate(ctx, "doc-1", &entity.ValidationRecord{ValidatedBy: "bob"})
	if !apperr.IsKind(err, apperr.StateConflict) {
		t.Errorf("error = %v, want StateConflict", err)
	}
}

func TestEngine_RequiredPayloads(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, "doc-1", domainwf.StateProcessing)

	if _, err := f.engine.CompleteExtraction(ctx, "doc-1", nil, ""); !apperr.IsKind(err, apperr.InvalidInput) {
		t.Errorf("nil extracted data error = %v", err)
	}
	if _, err := f.engine.Fail(ctx, "doc-1", "  ", ""); !apperr.IsKind(err, apperr.InvalidInput) {
		t.Errorf("empty message error = %v", err)
	}
	if _, err := f.engine.CompleteUpload(ctx, "doc-1", "", ""); !apperr.IsKind(err, apperr.InvalidInput) {
		t.Errorf("empty external id error = %v", err)
	}
	if _, err := f.engine.Validate(ctx, "doc-1", nil); !apperr.IsKind(err, apperr.InvalidInput) {
		t.Errorf("nil record error = %v", err)
	}
}

func TestEngine_FailAndRetry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, "doc-1", domainwf.StateUploaded)

	failed, err := f.engine.Fail(ctx, "doc-1", "booking rejected: unknown GL account", "")
	if err != nil {
		t.Fatalf("Fail() error: %v", err)
	}
	if failed.Status != domainwf.StateError.String() || entity.StringValue(failed.ErrorMessage) == "" {
		t.Errorf("unexpected failed document: %+v", failed)
	}
	if failed.ExternalBookingID != nil {
		t.Error("failed document must not carry a booking id")
	}

	retried, err := f.engine.Retry(ctx, "doc-1", "operator")
	if err != nil {
		t.Fatalf("Retry() error: %v", err)
	}
	if retried.Status != domainwf.StateProcessing.String() || retried.ErrorMessage != nil {
		t.Errorf("unexpected retried document: %+v", retried)
	}

	entries, _ := f.audit.ListByDocument(ctx, "doc-1")
	last := entries[len(entries)-1]
	if last.Action != "document.retry" || last.Details["previous_error"] != "booking rejected: unknown GL account" {
		t.Errorf("unexpected retry audit entry: %+v", last)
	}

	types := f.dispatcher.types()
	foundFailed := false
	for _, typ := range types {
		if typ == event.TypeDocumentFailed {
			foundFailed = true
		}
	}
	if !foundFailed {
		t.Errorf("expected document.failed event, got %v", types)
	}
}

func TestEngine_RollbackOnAuditFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, "doc-1", domainwf.StatePending)
	f.audit.appendErr = errors.New("disk full")

	if _, err := f.engine.StartProcessing(ctx, "doc-1", ""); err == nil {
		t.Fatal("expected error")
	}

	state, _ := f.engine.GetCurrentState(ctx, "doc-1")
	if state != domainwf.StatePending {
		t.Errorf("state = %s, want PENDING after rollback", state)
	}
	if len(f.dispatcher.types()) != 0 {
		t.Error("no events may be emitted for a rolled back transition")
	}
}

func TestEngine_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.engine.StartProcessing(context.Background(), "missing", "")
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("error = %v, want NotFound", err)
	}
}

func TestEngine_ConcurrentTransitionsOnOneDocument(t *testing.T) {
	f := newFixture()
	f.seed(t, "doc-1", domainwf.StatePending)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, conflicts := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.StartProcessing(context.Background(), "doc-1", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.IsKind(err, apperr.StateConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != workers-1 {
		t.Errorf("succeeded = %d, conflicts = %d", succeeded, conflicts)
	}
	if f.audit.count() != 1 {
		t.Errorf("audit entries = %d, want 1", f.audit.count())
	}
}

func TestEngine_CreateRejectsNonPending(t *testing.T) {
	f := newFixture()

	err := f.engine.Create(context.Background(), &entity.Document{ID: "doc-1", Status: "BOOKED"}, "")
	if !apperr.IsKind(err, apperr.StateConflict) {
		t.Errorf("error = %v, want StateConflict", err)
	}
	if err := f.engine.Create(context.Background(), &entity.Document{}, ""); !apperr.IsKind(err, apperr.InvalidInput) {
		t.Errorf("error = %v, want InvalidInput", err)
	}
}

func TestKeyedLocker(t *testing.T) {
	locker := NewKeyedLocker()

	unlockA := locker.Lock("a")
	unlockB := locker.Lock("b")
	if locker.Len() != 2 {
		t.Errorf("Len() = %d, want 2", locker.Len())
	}

	acquired := make(chan struct{})
	go func() {
		unlock := locker.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock(a) acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	unlockA()
	<-acquired
	unlockB()

	deadline := time.Now().Add(time.Second)
	for locker.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if locker.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after release", locker.Len())
	}
}
