// Package booking posts validated invoices to the external accounting system.
package booking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	"go.uber.org/zap"
)

// Config holds the retry policy and defaults of the adapter
type Config struct {
	AdministrationID string
	GLAccount        string
	VATGLAccount     string
	VATCode          string
	// MaxRetries is the total number of attempts per operation
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// Adapter wraps an AccountingClient with session handling, a bounded retry
// policy and failure classification. It is safe for concurrent use.
type Adapter struct {
	client port.AccountingClient
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	session string
}

// NewAdapter creates a new booking adapter
func NewAdapter(client port.AccountingClient, config Config, logger *zap.Logger) *Adapter {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	return &Adapter{
		client: client,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// ResolveAdministration returns id, or the configured default when id is empty
func (a *Adapter) ResolveAdministration(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if a.config.AdministrationID != "" {
		return a.config.AdministrationID, nil
	}
	return "", apperr.New(apperr.InvalidInput, "resolve administration", "administration id is required")
}

// Defaults fills empty account choices in opts from the configuration
func (a *Adapter) Defaults(opts Options) Options {
	if opts.GLAccount == "" {
		opts.GLAccount = a.config.GLAccount
	}
	if opts.VATGLAccount == "" {
		opts.VATGLAccount = a.config.VATGLAccount
	}
	if opts.VATCode == "" {
		opts.VATCode = a.config.VATCode
	}
	return opts
}

// UploadDocument archives a source file and returns the external document id.
// An empty date defaults to now and an empty type to "Invoice".
func (a *Adapter) UploadDocument(ctx context.Context, administrationID string, content []byte, meta port.UploadMetadata) (string, error) {
	adminID, err := a.ResolveAdministration(administrationID)
	if err != nil {
		return "", err
	}
	if meta.Date.IsZero() {
		meta.Date = a.now()
	}
	if meta.DocumentType == "" {
		meta.DocumentType = entity.DefaultDocumentType
	}

	var externalID string
	err = a.do(ctx, "upload document", func(ctx context.Context, session string) error {
		id, err := a.client.UploadDocument(ctx, session, adminID, content, meta)
		if err != nil {
			return err
		}
		externalID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	if externalID == "" {
		return "", apperr.New(apperr.ExternalServiceError, "upload document", "accounting system returned no document id")
	}

	a.logger.Info("Document uploaded to accounting system",
		zap.String("administration_id", adminID),
		zap.String("external_document_id", externalID))
	return externalID, nil
}

// CreateBooking books data against the uploaded document and returns the
// external booking id. Every attempt first searches for a booking already
// filed under the same idempotency key, so a retry after a lost response
// returns the existing booking instead of posting a second one.
func (a *Adapter) CreateBooking(ctx context.Context, data *entity.ExtractedData, externalDocumentID string, opts Options) (string, error) {
	adminID, err := a.ResolveAdministration(opts.AdministrationID)
	if err != nil {
		return "", err
	}
	opts.AdministrationID = adminID
	opts = a.Defaults(opts)

	tx, err := BuildTransaction(data, externalDocumentID, opts, a.now())
	if err != nil {
		return "", err
	}

	var bookingID string
	err = a.do(ctx, "create booking", func(ctx context.Context, session string) error {
		existing, err := a.findBooking(ctx, session, adminID, tx.Reference)
		if err != nil {
			return err
		}
		if existing != "" {
			a.logger.Info("Booking already exists, reusing it",
				zap.String("reference", tx.Reference),
				zap.String("booking_id", existing))
			bookingID = existing
			return nil
		}

		id, err := a.client.CreateBooking(ctx, session, tx)
		if err != nil {
			return err
		}
		bookingID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	if bookingID == "" {
		return "", apperr.New(apperr.ExternalServiceError, "create booking", "accounting system returned no booking id")
	}

	a.logger.Info("Booking created",
		zap.String("administration_id", adminID),
		zap.String("reference", tx.Reference),
		zap.String("booking_id", bookingID),
		zap.Int("lines", len(tx.Lines)))
	return bookingID, nil
}

func (a *Adapter) findBooking(ctx context.Context, session, adminID, reference string) (string, error) {
	docs, err := a.client.SearchDocuments(ctx, session, adminID, reference)
	if err != nil {
		return "", err
	}
	for _, d := range docs {
		if d.Reference == reference && d.BookingID != "" {
			return d.BookingID, nil
		}
	}
	return "", nil
}

// do runs fn under the retry policy. Each attempt gets its own timeout and
// a session, authenticating first when none is held. Transport failures drop
// the session and are retried after RetryDelay; any other failure is returned
// at once as ExternalServiceError. Cancellation of ctx is checked before every
// attempt and during the delay.
func (a *Adapter) do(ctx context.Context, op string, fn func(ctx context.Context, session string) error) error {
	var lastErr error

	for attempt := 1; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 1 {
			a.logger.Info("Retrying accounting call",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", a.config.RetryDelay),
				zap.Error(lastErr))
			if err := a.wait(ctx); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		err := a.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		if !IsTransient(err) {
			a.logger.Warn("Accounting call rejected",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return apperr.Wrap(apperr.ExternalServiceError, op, err)
		}
		lastErr = err
	}

	a.logger.Error("Accounting call failed after retries",
		zap.String("operation", op),
		zap.Int("max_retries", a.config.MaxRetries),
		zap.Error(lastErr))
	return apperr.Wrap(apperr.ConnectionError, op,
		fmt.Errorf("giving up after %d attempts: %w", a.config.MaxRetries, lastErr))
}

func (a *Adapter) attempt(ctx context.Context, fn func(ctx context.Context, session string) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	session, err := a.ensureSession(attemptCtx)
	if err != nil {
		return err
	}
	if err := fn(attemptCtx, session); err != nil {
		if IsTransient(err) {
			a.invalidateSession(session)
		}
		return err
	}
	return nil
}

func (a *Adapter) wait(ctx context.Context) error {
	if a.config.RetryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.config.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ensureSession authenticates when no session is held
func (a *Adapter) ensureSession(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != "" {
		return a.session, nil
	}
	session, err := a.client.Authenticate(ctx)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	if session == "" {
		return "", errors.New("authenticate: empty session id")
	}
	a.session = session
	a.logger.Debug("Accounting session established")
	return session, nil
}

// invalidateSession drops session unless another caller already replaced it
func (a *Adapter) invalidateSession(session string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == session {
		a.session = ""
	}
}

// IsTransient reports whether err is a connectivity failure worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, port.ErrTransport) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
