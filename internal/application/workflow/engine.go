// Package workflow drives documents through their processing lifecycle.
package workflow

import (
	"context"

	"github.com/garyjia/invoice-booking/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-booking/internal/domain/workflow"
)

// Lifecycle owns every status change of a document. Each transition checks
// the current status, writes the new status together with one audit entry
// in a single transaction, and returns the updated document. A transition
// attempted from an illegal status fails with apperr.StateConflict and
// changes nothing.
type Lifecycle interface {
	// Create persists a new PENDING document and its intake audit entry
	Create(ctx context.Context, doc *entity.Document, actor string) error

	// StartProcessing moves PENDING to PROCESSING
	StartProcessing(ctx context.Context, documentID, actor string) (*entity.Document, error)

	// CompleteExtraction stores data and its confidence, PROCESSING to EXTRACTED
	CompleteExtraction(ctx context.Context, documentID string, data *entity.ExtractedData, actor string) (*entity.Document, error)

	// Validate appends record, EXTRACTED to VALIDATED; extracted data is left as is
	Validate(ctx context.Context, documentID string, record *entity.ValidationRecord) (*entity.Document, error)

	// CompleteUpload records the external document id, VALIDATED to UPLOADED
	CompleteUpload(ctx context.Context, documentID, externalDocumentID, actor string) (*entity.Document, error)

	// CompleteBooking records the external booking id, UPLOADED to BOOKED
	CompleteBooking(ctx context.Context, documentID, externalBookingID, actor string) (*entity.Document, error)

	// Fail records message and moves any status except BOOKED to ERROR
	Fail(ctx context.Context, documentID, message, actor string) (*entity.Document, error)

	// Retry clears the error and moves ERROR back to PROCESSING
	Retry(ctx context.Context, documentID, actor string) (*entity.Document, error)

	// GetCurrentState returns the persisted status of a document
	GetCurrentState(ctx context.Context, documentID string) (domainwf.State, error)
}
