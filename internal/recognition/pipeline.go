package recognition

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Supported source mime types
const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

// IsSupported reports whether mimeType can be recognised
func IsSupported(mimeType string) bool {
	switch mimeType {
	case MimePDF, MimeJPEG, MimePNG:
		return true
	}
	return false
}

// PipelineConfig bounds the recognition work done for one document
type PipelineConfig struct {
	Concurrency int
	MaxPages    int
	PageTimeout time.Duration
}

// Pipeline splits a document into pages, recognises them concurrently and
// aggregates the results
type Pipeline struct {
	provider   port.RecognitionProvider
	rasterizer port.PageRasterizer
	config     PipelineConfig
	logger     *zap.Logger
}

// NewPipeline creates a new recognition pipeline
func NewPipeline(provider port.RecognitionProvider, rasterizer port.PageRasterizer, config PipelineConfig, logger *zap.Logger) *Pipeline {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = 60 * time.Second
	}
	return &Pipeline{
		provider:   provider,
		rasterizer: rasterizer,
		config:     config,
		logger:     logger,
	}
}

// Recognize returns the aggregated text and confidence of a document.
// A page the provider fails on is kept as an empty page with zero confidence;
// only cancellation of ctx or a rasterisation failure fails the call.
func (p *Pipeline) Recognize(ctx context.Context, content []byte, mimeType string) (*Result, error) {
	pages, err := p.pages(ctx, content, mimeType)
	if err != nil {
		return nil, err
	}

	results := make([]PageResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pageCtx, cancel := context.WithTimeout(gctx, p.config.PageTimeout)
			defer cancel()

			text, conf, err := p.provider.Recognize(pageCtx, page.Data, page.MimeType)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				p.logger.Warn("Page recognition failed, continuing with empty page",
					zap.Int("page", page.Index),
					zap.Error(err))
				results[i] = EmptyPage
				return nil
			}
			results[i] = PageResult{Text: text, Confidence: conf}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("recognize pages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("recognize pages: %w", err)
	}

	p.logger.Debug("Document recognised", zap.Int("pages", len(pages)))
	return Aggregate(results)
}

func (p *Pipeline) pages(ctx context.Context, content []byte, mimeType string) ([]port.PageImage, error) {
	switch mimeType {
	case MimeJPEG, MimePNG:
		return []port.PageImage{{Index: 0, Data: content, MimeType: mimeType}}, nil
	case MimePDF:
		pages, err := p.rasterizer.Rasterize(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("rasterize pdf: %w", err)
		}
		if len(pages) == 0 {
			return nil, apperr.New(apperr.InvalidInput, "rasterize pdf", "document has no pages")
		}
		if p.config.MaxPages > 0 && len(pages) > p.config.MaxPages {
			p.logger.Info("Truncating document to page limit",
				zap.Int("pages", len(pages)),
				zap.Int("max_pages", p.config.MaxPages))
			pages = pages[:p.config.MaxPages]
		}
		return pages, nil
	default:
		return nil, apperr.Newf(apperr.InvalidInput, "recognize", "unsupported mime type %q", mimeType)
	}
}

// EmptyPage is the degraded result for a page that could not be read
var EmptyPage = PageResult{Confidence: entity.PageConfidence{}}
