package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"github.com/garyjia/invoice-booking/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const documentColumns = `
	id, filename, original_filename, storage_path, mime_type, file_size,
	content_hash, status, error_message, extracted_data, confidence_scores,
	external_document_id, external_booking_id, created_at, updated_at`

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new document
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	extracted, confidence, err := encodeDocumentBlobs(doc)
	if err != nil {
		return err
	}

	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		doc.ID,
		doc.Filename,
		doc.OriginalFilename,
		doc.StoragePath,
		doc.MimeType,
		doc.FileSize,
		doc.ContentHash,
		doc.Status,
		nullString(doc.ErrorMessage),
		extracted,
		confidence,
		nullString(doc.ExternalDocumentID),
		nullString(doc.ExternalBookingID),
		formatTime(doc.CreatedAt),
		formatTime(doc.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.String("id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document, returning (nil, nil) when it does not exist
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	doc, err := scanDocument(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Save overwrites the mutable columns of an existing document
func (r *DocumentRepository) Save(ctx context.Context, doc *entity.Document) error {
	extracted, confidence, err := encodeDocumentBlobs(doc)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents SET
			status = ?, error_message = ?, extracted_data = ?, confidence_scores = ?,
			external_document_id = ?, external_booking_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		doc.Status,
		nullString(doc.ErrorMessage),
		extracted,
		confidence,
		nullString(doc.ExternalDocumentID),
		nullString(doc.ExternalBookingID),
		formatTime(doc.UpdatedAt),
		doc.ID,
	)
	if err != nil {
		r.logger.Error("Failed to save document", zap.String("id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to save document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("document not found: %s", doc.ID)
	}
	return nil
}

// List returns documents newest first; an empty status means all statuses
func (r *DocumentRepository) List(ctx context.Context, status string, limit, offset int) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	return r.query(ctx, "list documents", query, status, status, limit, offset)
}

// Count returns the number of documents in status, or all documents when status is empty
func (r *DocumentRepository) Count(ctx context.Context, status string) (int, error) {
	var count int
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE (? = '' OR status = ?)`, status, status,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count documents", zap.String("status", status), zap.Error(err))
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// ListByStatus returns the oldest documents in status
func (r *DocumentRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`

	return r.query(ctx, "list documents by status", query, status, limit)
}

func (r *DocumentRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*entity.Document, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query documents", zap.String("op", op), zap.Error(err))
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc                          entity.Document
		errorMessage, extracted      sql.NullString
		confidence, externalDocument sql.NullString
		externalBooking              sql.NullString
		createdAt, updatedAt         string
	)

	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.OriginalFilename,
		&doc.StoragePath,
		&doc.MimeType,
		&doc.FileSize,
		&doc.ContentHash,
		&doc.Status,
		&errorMessage,
		&extracted,
		&confidence,
		&externalDocument,
		&externalBooking,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.ErrorMessage = stringPtr(errorMessage)
	doc.ExternalDocumentID = stringPtr(externalDocument)
	doc.ExternalBookingID = stringPtr(externalBooking)

	if extracted.Valid {
		var data entity.ExtractedData
		if err := json.Unmarshal([]byte(extracted.String), &data); err != nil {
			return nil, fmt.Errorf("failed to decode extracted data of %s: %w", doc.ID, err)
		}
		doc.ExtractedData = &data
	}
	if confidence.Valid {
		var scores entity.ConfidenceScores
		if err := json.Unmarshal([]byte(confidence.String), &scores); err != nil {
			return nil, fmt.Errorf("failed to decode confidence scores of %s: %w", doc.ID, err)
		}
		doc.ConfidenceScores = &scores
	}

	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

func encodeDocumentBlobs(doc *entity.Document) (sql.NullString, sql.NullString, error) {
	extracted, err := marshalNullable(doc.ExtractedData, doc.ExtractedData == nil)
	if err != nil {
		return sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to encode extracted data: %w", err)
	}
	confidence, err := marshalNullable(doc.ConfidenceScores, doc.ConfidenceScores == nil)
	if err != nil {
		return sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to encode confidence scores: %w", err)
	}
	return extracted, confidence, nil
}
