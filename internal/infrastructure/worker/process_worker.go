package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/invoice-booking/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-booking/internal/domain/workflow"
	"go.uber.org/zap"
)

// DocumentSource lists documents waiting in a status, oldest first
type DocumentSource interface {
	ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error)
}

// DocumentProcessor runs recognition and extraction for one document
type DocumentProcessor interface {
	Advance(ctx context.Context, documentID, actor string) (*entity.Document, error)
}

// ProcessWorkerConfig holds configuration for the auto-process worker
type ProcessWorkerConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	ProcessTimeout time.Duration
}

// DefaultProcessWorkerConfig returns default configuration
func DefaultProcessWorkerConfig() ProcessWorkerConfig {
	return ProcessWorkerConfig{
		PollInterval:   10 * time.Second,
		BatchSize:      5,
		ProcessTimeout: 120 * time.Second,
	}
}

// Stats is a snapshot of worker progress
type Stats struct {
	Running        bool      `json:"running"`
	ProcessedCount int       `json:"processed_count"`
	FailedCount    int       `json:"failed_count"`
	LastProcessed  time.Time `json:"last_processed"`
	LastError      string    `json:"last_error,omitempty"`
}

// ProcessWorker picks up PENDING documents and advances them to EXTRACTED
type ProcessWorker struct {
	config    ProcessWorkerConfig
	source    DocumentSource
	processor DocumentProcessor
	logger    *zap.Logger

	mu             sync.RWMutex
	cancel         context.CancelFunc
	done           chan struct{}
	isRunning      bool
	lastProcessed  time.Time
	processedCount int
	failedCount    int
	lastError      error
}

// NewProcessWorker creates a new auto-process worker
func NewProcessWorker(config ProcessWorkerConfig, source DocumentSource, processor DocumentProcessor, logger *zap.Logger) *ProcessWorker {
	defaults := DefaultProcessWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.ProcessTimeout <= 0 {
		config.ProcessTimeout = defaults.ProcessTimeout
	}
	return &ProcessWorker{
		config:    config,
		source:    source,
		processor: processor,
		logger:    logger,
	}
}

// Start begins the worker polling loop
func (w *ProcessWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("process worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("ProcessWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(runCtx, w.done)
	return nil
}

// Stop ends polling and waits for the document in flight to finish
func (w *ProcessWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("ProcessWorker stopped",
		zap.Int("processed_count", stats.ProcessedCount),
		zap.Int("failed_count", stats.FailedCount))
	return nil
}

// Name returns the worker name for identification
func (w *ProcessWorker) Name() string {
	return "ProcessWorker"
}

// Stats returns a snapshot of the worker counters
func (w *ProcessWorker) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := Stats{
		Running:        w.isRunning,
		ProcessedCount: w.processedCount,
		FailedCount:    w.failedCount,
		LastProcessed:  w.lastProcessed,
	}
	if w.lastError != nil {
		s.LastError = w.lastError.Error()
	}
	return s
}

func (w *ProcessWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("Failed to process pending documents", zap.Error(err))
			}
		}
	}
}

// ProcessBatch advances up to BatchSize PENDING documents and returns how
// many reached EXTRACTED. A document already started is allowed to finish
// when ctx is cancelled; the batch stops before the next one.
func (w *ProcessWorker) ProcessBatch(ctx context.Context) (int, error) {
	docs, err := w.source.ListByStatus(ctx, string(domainwf.StatePending), w.config.BatchSize)
	if err != nil {
		w.recordError(err)
		return 0, fmt.Errorf("failed to list pending documents: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	w.logger.Debug("Processing pending documents", zap.Int("count", len(docs)))

	processed := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		docCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.ProcessTimeout)
		_, err := w.processor.Advance(docCtx, doc.ID, entity.SystemActor)
		cancel()

		w.mu.Lock()
		w.lastProcessed = time.Now()
		if err != nil {
			w.failedCount++
			w.lastError = err
		} else {
			w.processedCount++
		}
		w.mu.Unlock()

		if err != nil {
			w.logger.Warn("Failed to process document",
				zap.String("document_id", doc.ID),
				zap.String("filename", doc.OriginalFilename),
				zap.Error(err))
			continue
		}
		processed++
		w.logger.Info("Document processed",
			zap.String("document_id", doc.ID))
	}
	return processed, nil
}

func (w *ProcessWorker) recordError(err error) {
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
}
