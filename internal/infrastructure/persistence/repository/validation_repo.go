package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/garyjia/invoice-booking/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ValidationRepository implements port.ValidationRepository
type ValidationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewValidationRepository creates a new validation repository
func NewValidationRepository(db *sql.DB, logger *zap.Logger) port.ValidationRepository {
	return &ValidationRepository{
		db:     db,
		logger: logger,
	}
}

const validationColumns = `id, document_id, validated_by, validation_data, notes, validated_at`

// Append stores one validation record
func (r *ValidationRepository) Append(ctx context.Context, record *entity.ValidationRecord) error {
	data := record.ValidationData
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode validation data: %w", err)
	}

	query := `INSERT INTO document_validations (` + validationColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		record.ID,
		record.DocumentID,
		record.ValidatedBy,
		string(payload),
		record.Notes,
		formatTime(record.ValidatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to append validation", zap.String("document_id", record.DocumentID), zap.Error(err))
		return fmt.Errorf("failed to append validation: %w", err)
	}
	return nil
}

// ListByDocument returns a document's validations, oldest first
func (r *ValidationRepository) ListByDocument(ctx context.Context, documentID string) ([]*entity.ValidationRecord, error) {
	query := `SELECT ` + validationColumns + ` FROM document_validations
		WHERE document_id = ?
		ORDER BY validated_at ASC, seq ASC`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to list validations", zap.String("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list validations: %w", err)
	}
	defer rows.Close()

	var records []*entity.ValidationRecord
	for rows.Next() {
		record, err := scanValidation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate validations: %w", err)
	}
	return records, nil
}

// Latest returns the authoritative validation, or (nil, nil) when there is none
func (r *ValidationRepository) Latest(ctx context.Context, documentID string) (*entity.ValidationRecord, error) {
	query := `SELECT ` + validationColumns + ` FROM document_validations
		WHERE document_id = ?
		ORDER BY validated_at DESC, seq DESC
		LIMIT 1`

	record, err := scanValidation(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, documentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get latest validation", zap.String("document_id", documentID), zap.Error(err))
		return nil, err
	}
	return record, nil
}

func scanValidation(row rowScanner) (*entity.ValidationRecord, error) {
	var (
		record      entity.ValidationRecord
		payload     string
		notes       sql.NullString
		validatedAt string
	)
	if err := row.Scan(
		&record.ID,
		&record.DocumentID,
		&record.ValidatedBy,
		&payload,
		&notes,
		&validatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan validation: %w", err)
	}

	record.Notes = notes.String
	// numbers stay json.Number so amounts keep their exact decimal text
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&record.ValidationData); err != nil {
		return nil, fmt.Errorf("failed to decode validation data: %w", err)
	}

	var err error
	if record.ValidatedAt, err = parseTime(validatedAt); err != nil {
		return nil, err
	}
	return &record, nil
}
