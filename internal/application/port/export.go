package port

import (
	"context"
	"io"

	"github.com/garyjia/invoice-booking/internal/domain/entity"
)

// DocumentExporter writes a document listing in a download format
type DocumentExporter interface {
	Export(ctx context.Context, w io.Writer, docs []*entity.Document) error
	ContentType() string
	FileExtension() string
}
