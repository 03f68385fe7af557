// Package rasterizer renders PDF pages to JPEG images with MuPDF.
package rasterizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

const (
	baseDPI     = 72.0
	jpegQuality = 90
)

// FitzRasterizer implements port.PageRasterizer
type FitzRasterizer struct {
	zoom   float64
	logger *zap.Logger
}

// New creates a rasterizer rendering at zoom times 72 DPI
func New(zoom float64, logger *zap.Logger) *FitzRasterizer {
	if zoom <= 0 {
		zoom = 3
	}
	return &FitzRasterizer{zoom: zoom, logger: logger}
}

// Rasterize renders every page of pdf. A page that fails to render is
// skipped; the remaining pages keep their original index.
func (r *FitzRasterizer) Rasterize(ctx context.Context, pdf []byte) ([]port.PageImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	r.logger.Debug("Rasterizing PDF", zap.Int("total_pages", pageCount), zap.Float64("zoom", r.zoom))

	pages := make([]port.PageImage, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(pageNum, baseDPI*r.zoom)
		if err != nil {
			r.logger.Warn("Failed to render page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		data, err := encodeJPEG(img)
		if err != nil {
			r.logger.Warn("Failed to encode page to JPEG",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		pages = append(pages, port.PageImage{Index: pageNum, Data: data, MimeType: "image/jpeg"})
	}

	return pages, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Verify interface compliance
var _ port.PageRasterizer = (*FitzRasterizer)(nil)
