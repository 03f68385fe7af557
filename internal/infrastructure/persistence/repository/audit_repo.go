package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/garyjia/invoice-booking/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AuditRepository implements port.AuditRepository. Rows are never updated or deleted.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes one audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditLogEntry) error {
	details, err := marshalNullable(entry.Details, len(entry.Details) == 0)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			id, document_id, action, performed_by, from_status, to_status, details, performed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.DocumentID,
		entry.Action,
		entry.PerformedBy,
		entry.FromStatus,
		entry.ToStatus,
		details,
		formatTime(entry.PerformedAt),
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("document_id", entry.DocumentID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByDocument returns a document's entries by timestamp, ties in insertion order
func (r *AuditRepository) ListByDocument(ctx context.Context, documentID string) ([]*entity.AuditLogEntry, error) {
	query := `
		SELECT id, document_id, action, performed_by, from_status, to_status, details, performed_at
		FROM audit_logs
		WHERE document_id = ?
		ORDER BY performed_at ASC, seq ASC
	`
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.String("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditLogEntry
	for rows.Next() {
		var (
			entry                entity.AuditLogEntry
			fromStatus, toStatus sql.NullString
			details              sql.NullString
			performedAt          string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.DocumentID,
			&entry.Action,
			&entry.PerformedBy,
			&fromStatus,
			&toStatus,
			&details,
			&performedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.FromStatus = fromStatus.String
		entry.ToStatus = toStatus.String
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		if entry.PerformedAt, err = parseTime(performedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
