package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/invoice-booking/internal/application/dispatcher"
	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/garyjia/invoice-booking/internal/domain/event"
	domainwf "github.com/garyjia/invoice-booking/internal/domain/workflow"
	"github.com/google/uuid"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of Lifecycle
type engineImpl struct {
	documentRepo   port.DocumentRepository
	auditRepo      port.AuditRepository
	validationRepo port.ValidationRepository
	txManager      port.TransactionManager
	dispatcher     dispatcher.Dispatcher
	logger         Logger
	now            func() time.Time

	locks *KeyedLocker
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the logger for transition logging
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(
	documentRepo port.DocumentRepository,
	auditRepo port.AuditRepository,
	validationRepo port.ValidationRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Lifecycle {
	e := &engineImpl{
		documentRepo:   documentRepo,
		auditRepo:      auditRepo,
		validationRepo: validationRepo,
		txManager:      txManager,
		now:            func() time.Time { return time.Now().UTC() },
		locks:          NewKeyedLocker(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// transition describes one status change. mutate edits a copy of the
// document before it is saved and persist runs extra writes in the same
// transaction.
type transition struct {
	trigger domainwf.Trigger
	actor   string
	details map[string]interface{}
	mutate  func(doc *entity.Document) error
	persist func(ctx context.Context, doc *entity.Document) error
}

// Create persists a new PENDING document and its intake audit entry
func (e *engineImpl) Create(ctx context.Context, doc *entity.Document, actor string) error {
	if doc == nil || doc.ID == "" {
		return apperr.New(apperr.InvalidInput, "create document", "document id is required")
	}
	if doc.Status == "" {
		doc.Status = domainwf.StatePending.String()
	}
	if doc.Status != domainwf.StatePending.String() {
		return apperr.Newf(apperr.StateConflict, "create document", "new documents start in %s, got %s", domainwf.StatePending, doc.Status)
	}

	now := e.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	entry := &entity.AuditLogEntry{
		ID:          uuid.NewString(),
		DocumentID:  doc.ID,
		Action:      entity.ActionDocumentCreated,
		PerformedBy: actorOrSystem(actor),
		ToStatus:    doc.Status,
		Details: map[string]interface{}{
			"filename":     doc.OriginalFilename,
			"mime_type":    doc.MimeType,
			"file_size":    doc.FileSize,
			"content_hash": doc.ContentHash,
		},
		PerformedAt: now,
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.documentRepo.Create(txCtx, doc); err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		if err := e.auditRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logInfo("Document created", "document_id", doc.ID, "filename", doc.OriginalFilename)
	e.dispatch(ctx, event.NewEvent(event.TypeDocumentCreated, doc.ID, map[string]interface{}{
		"to_status": doc.Status,
		"actor":     entry.PerformedBy,
	}))
	return nil
}

func (e *engineImpl) StartProcessing(ctx context.Context, documentID, actor string) (*entity.Document, error) {
	return e.fire(ctx, documentID, transition{
		trigger: domainwf.TriggerStartProcessing,
		actor:   actor,
	})
}

func (e *engineImpl) CompleteExtraction(ctx context.Context, documentID string, data *entity.ExtractedData, actor string) (*entity.Document, error) {
	if data == nil {
		return nil, apperr.New(apperr.InvalidInput, "complete extraction", "extracted data is required")
	}
	return e.fire(ctx, documentID, transition{
		trigger: domainwf.TriggerCompleteExtraction,
		actor:   actor,
		details: map[string]interface{}{
			"fields_found":       len(data.FieldConfidence),
			"overall_confidence": data.Confidence.Overall,
		},
		mutate: func(doc *entity.Document) error {
			doc.ExtractedData = data.Clone()
			scores := data.Confidence.Clone()
			doc.ConfidenceScores = &scores
			doc.ErrorMessage = nil
			return nil
		},
	})
}

func (e *engineImpl) Validate(ctx context.Context, documentID string, record *entity.ValidationRecord) (*entity.Document, error) {
	if record == nil {
		return nil, apperr.New(apperr.InvalidInput, "validate", "validation record is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.DocumentID = documentID
	if record.ValidatedAt.IsZero() {
		record.ValidatedAt = e.now()
	}

	return e.fire(ctx, documentID, transition{
		trigger: domainwf.TriggerValidate,
		actor:   record.ValidatedBy,
		details: map[string]interface{}{
			"validation_id": record.ID,
			"fields":        len(record.ValidationData),
		},
		mutate: func(doc *entity.Document) error {
			if doc.ExtractedData == nil {
				return apperr.New(apperr.StateConflict, "validate", "document has no extracted data")
			}
			return nil
		},
		persist: func(ctx context.Context, doc *entity.Document) error {
			if err := e.validationRepo.Append(ctx, record); err != nil {
				return fmt.Errorf("failed to append validation record: %w", err)
			}
			return nil
		},
	})
}

func (e *engineImpl) CompleteUpload(ctx context.Context, documentID, externalDocumentID, actor string) (*entity.Document, error) {
	if externalDocumentID == "" {
		return nil, apperr.New(apperr.InvalidInput, "complete upload", "external document id is required")
	}
	return e.fire(ctx, documentID, transition{
		trigger: domainwf.TriggerCompleteUpload,
		actor:   actor,
		details: map[string]interface{}{"external_document_id": externalDocumentID},
		mutate: func(doc *entity.Document) error {
			doc.ExternalDocumentID = entity.StringPtr(externalDocumentID)
			return nil
		},
	})
}

func (e *engineImpl) CompleteBooking(ctx context.Context, documentID, externalBookingID, actor string) (*entity.Document, error) {
	if externalBookingID == "" {
		return nil, apperr.New(apperr.InvalidInput, "complete booking", "external booking id is required")
	}
	return e.fire(ctx, documentID, transition{
		trigger: domainwf.TriggerCompleteBooking,
		actor:   actor,
		details: map[string]interface{}{"external_booking_id": externalBookingID},
		mutate: func(doc *entity.Document) error {
			if doc.ExternalDocumentID == nil {
				return apperr.New(apperr.StateConflict, "complete booking", "document has no external document id")
			}
			doc.ExternalBookingID = entity.StringPtr(externalBookingID)
			doc.ErrorMessage = nil
			return nil
		},
	})
}

func (e *engineImpl) Fail(ctx context.Context, documentID, message, actor string) (*entity.Document, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.New(apperr.InvalidInput, "fail", "error message is required")
	}
	return e.fire(ctx, documentID, transition{
		trigger: domainwf.TriggerFail,
		actor:   actor,
		details: map[string]interface{}{"error": message},
		mutate: func(doc *entity.Document) error {
			doc.ErrorMessage = entity.StringPtr(message)
			return nil
		},
	})
}

func (e *engineImpl) Retry(ctx context.Context, documentID, actor string) (*entity.Document, error) {
	details := map[string]interface{}{}
	return e.fire(ctx, documentID, transition{
		trigger: domainwf.TriggerRetry,
		actor:   actor,
		details: details,
		mutate: func(doc *entity.Document) error {
			details["previous_error"] = entity.StringValue(doc.ErrorMessage)
			doc.ErrorMessage = nil
			return nil
		},
	})
}

// GetCurrentState returns the persisted status of a document
func (e *engineImpl) GetCurrentState(ctx context.Context, documentID string) (domainwf.State, error) {
	doc, err := e.load(ctx, documentID)
	if err != nil {
		return "", err
	}
	return domainwf.State(doc.Status), nil
}

func (e *engineImpl) load(ctx context.Context, documentID string) (*entity.Document, error) {
	doc, err := e.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	if doc == nil {
		return nil, apperr.Newf(apperr.NotFound, "load document", "document %s not found", documentID)
	}
	return doc, nil
}

// fire runs one transition under the document's lock. The state machine is
// rebuilt from the persisted status every time, so no stale copy can be used.
func (e *engineImpl) fire(ctx context.Context, documentID string, t transition) (*entity.Document, error) {
	unlock := e.locks.Lock(documentID)
	defer unlock()

	doc, err := e.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	previousState := domainwf.State(doc.Status)
	if !previousState.IsValid() {
		return nil, fmt.Errorf("invalid state in document %s: %s", documentID, doc.Status)
	}

	machine := BuildDocumentStateMachine(previousState)
	if err := machine.Fire(t.trigger); err != nil {
		if errors.Is(err, domainwf.ErrInvalidTransition) {
			return nil, apperr.Newf(apperr.StateConflict, actionName(t.trigger),
				"cannot apply %s to document %s in status %s (permitted: %s)",
				t.trigger, documentID, previousState, joinTriggers(machine.PermittedTriggers()))
		}
		return nil, fmt.Errorf("state machine fire failed: %w", err)
	}
	newState := machine.State()

	updated := doc.Clone()
	if t.mutate != nil {
		if err := t.mutate(updated); err != nil {
			return nil, err
		}
	}
	now := e.now()
	updated.Status = newState.String()
	updated.UpdatedAt = now

	// copied after mutate, which may add entries
	details := make(map[string]interface{}, len(t.details))
	for k, v := range t.details {
		details[k] = v
	}

	actor := actorOrSystem(t.actor)
	entry := &entity.AuditLogEntry{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		Action:      actionName(t.trigger),
		PerformedBy: actor,
		FromStatus:  previousState.String(),
		ToStatus:    newState.String(),
		Details:     details,
		PerformedAt: now,
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if t.persist != nil {
			if err := t.persist(txCtx, updated); err != nil {
				return err
			}
		}
		if err := e.documentRepo.Save(txCtx, updated); err != nil {
			return fmt.Errorf("failed to update document status: %w", err)
		}
		if err := e.auditRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logError("Transition rollback",
			"document_id", documentID,
			"trigger", t.trigger,
			"error", err)
		return nil, err
	}

	e.logInfo("Document transitioned",
		"document_id", documentID,
		"from", previousState,
		"to", newState,
		"trigger", t.trigger,
		"actor", actor)

	e.emit(ctx, updated, previousState, newState, t.trigger, actor)
	return updated, nil
}

// emit dispatches the post-commit events of a transition. Handlers run
// detached from the caller's cancellation.
func (e *engineImpl) emit(ctx context.Context, doc *entity.Document, from, to domainwf.State, trigger domainwf.Trigger, actor string) {
	if e.dispatcher == nil {
		return
	}
	base := event.NewEvent(event.TypeStatusChanged, doc.ID, map[string]interface{}{
		"from_status": from.String(),
		"to_status":   to.String(),
		"trigger":     trigger.String(),
		"actor":       actor,
	})
	e.dispatch(ctx, base)

	switch to {
	case domainwf.StateBooked:
		e.dispatch(ctx, event.NewEventWithCorrelation(event.TypeDocumentBooked, doc.ID, map[string]interface{}{
			"external_document_id": entity.StringValue(doc.ExternalDocumentID),
			"external_booking_id":  entity.StringValue(doc.ExternalBookingID),
		}, base.CorrelationID))
	case domainwf.StateError:
		e.dispatch(ctx, event.NewEventWithCorrelation(event.TypeDocumentFailed, doc.ID, map[string]interface{}{
			"from_status": from.String(),
			"error":       entity.StringValue(doc.ErrorMessage),
		}, base.CorrelationID))
	}
}

func (e *engineImpl) dispatch(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt)
}

func (e *engineImpl) logInfo(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, kv...)
	}
}

func (e *engineImpl) logError(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, kv...)
	}
}

// actionName is the audit action written for a trigger, e.g. "document.validate"
func actionName(trigger domainwf.Trigger) string {
	return "document." + strings.ToLower(trigger.String())
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return entity.SystemActor
	}
	return actor
}

func joinTriggers(triggers []domainwf.Trigger) string {
	if len(triggers) == 0 {
		return "none"
	}
	names := make([]string, len(triggers))
	for i, t := range triggers {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}
