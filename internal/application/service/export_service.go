package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-booking/internal/domain/workflow"
)

const exportBatchSize = 100

// ExportService writes document listings through a DocumentExporter
type ExportService interface {
	// Export writes every document in status (all when empty) and returns how many were written
	Export(ctx context.Context, w io.Writer, status string) (int, error)
	ContentType() string
	FileExtension() string
}

type exportServiceImpl struct {
	documentRepo port.DocumentRepository
	exporter     port.DocumentExporter
	logger       Logger
}

// NewExportService creates a new ExportService
func NewExportService(documentRepo port.DocumentRepository, exporter port.DocumentExporter, logger Logger) ExportService {
	return &exportServiceImpl{
		documentRepo: documentRepo,
		exporter:     exporter,
		logger:       logger,
	}
}

func (s *exportServiceImpl) Export(ctx context.Context, w io.Writer, status string) (int, error) {
	if status != "" && !domainwf.State(status).IsValid() {
		return 0, apperr.Newf(apperr.InvalidInput, "export documents", "unknown status %q", status)
	}

	var docs []*entity.Document
	for offset := 0; ; offset += exportBatchSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch, err := s.documentRepo.List(ctx, status, exportBatchSize, offset)
		if err != nil {
			return 0, fmt.Errorf("list documents: %w", err)
		}
		docs = append(docs, batch...)
		if len(batch) < exportBatchSize {
			break
		}
	}

	if err := s.exporter.Export(ctx, w, docs); err != nil {
		s.logger.Error("Failed to export documents", "error", err, "count", len(docs))
		return 0, fmt.Errorf("export documents: %w", err)
	}

	s.logger.Info("Documents exported", "count", len(docs), "status", status)
	return len(docs), nil
}

func (s *exportServiceImpl) ContentType() string {
	return s.exporter.ContentType()
}

func (s *exportServiceImpl) FileExtension() string {
	return s.exporter.FileExtension()
}
