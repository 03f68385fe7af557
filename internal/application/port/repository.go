package port

import (
	"context"

	"github.com/garyjia/invoice-booking/internal/domain/entity"
)

// DocumentRepository defines persistence operations for Document.
// GetByID returns (nil, nil) when the document does not exist.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	// Save overwrites every mutable column of an existing document
	Save(ctx context.Context, doc *entity.Document) error
	// List returns documents newest first; an empty status means all statuses
	List(ctx context.Context, status string, limit, offset int) ([]*entity.Document, error)
	Count(ctx context.Context, status string) (int, error)
	// ListByStatus returns the oldest documents in a status, for batch processing
	ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error)
}

// AuditRepository is the append-only audit trail
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditLogEntry) error
	// ListByDocument returns entries in the order they were written
	ListByDocument(ctx context.Context, documentID string) ([]*entity.AuditLogEntry, error)
}

// ValidationRepository stores human validation records
type ValidationRepository interface {
	Append(ctx context.Context, record *entity.ValidationRecord) error
	ListByDocument(ctx context.Context, documentID string) ([]*entity.ValidationRecord, error)
	// Latest returns (nil, nil) when the document was never validated
	Latest(ctx context.Context, documentID string) (*entity.ValidationRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
