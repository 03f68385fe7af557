// Package yuki is the wire transport to the Yuki accounting system: SOAP web
// services for bookings and queries, and a multipart HTTP endpoint for
// document uploads.
package yuki

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"go.uber.org/zap"
)

const (
	soapNamespace = "http://www.theyukicompany.com/"

	accountingService = "Accounting.asmx"
	archiveService    = "Archive.asmx"
	contactService    = "Contact.asmx"
	uploadEndpoint    = "Upload.aspx"

	maxResponseSize = 32 << 20
)

// ErrSessionExpired is returned when the server rejects the session id. It
// wraps port.ErrTransport so the caller re-authenticates and retries.
var ErrSessionExpired = fmt.Errorf("%w: session expired", port.ErrTransport)

// Config holds the endpoint and credentials of the accounting system
type Config struct {
	BaseURL  string
	Username string
	Password string
	// Timeout bounds a single HTTP exchange; zero means 60s
	Timeout time.Duration
}

// Client implements port.AccountingClient over HTTP
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a new accounting system client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("yuki base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}, nil
}

// StatusError is a non-success HTTP response that is not a SOAP fault
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

// transientStatus reports statuses worth retrying
func transientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// send executes req and returns the response body. Network failures and
// transient statuses are wrapped in port.ErrTransport; the body of any other
// non-2xx response is returned together with a *StatusError.
func (c *Client) send(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Accounting request failed",
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", port.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", port.ErrTransport, err)
	}

	c.logger.Debug("Accounting response",
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode/100 == 2 {
		return body, nil
	}
	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(bytes.TrimSpace(body)), 200)}
	if transientStatus(resp.StatusCode) {
		return body, fmt.Errorf("%w: %w", port.ErrTransport, statusErr)
	}
	return body, statusErr
}

func (c *Client) endpoint(name string) string {
	return c.baseURL + "/" + name
}

// Authenticate opens a session with the configured credentials
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	var resp authenticateResponse
	err := c.call(ctx, accountingService, &authenticateRequest{
		UserName: c.username,
		Password: c.password,
	}, &resp)
	if err != nil {
		return "", err
	}
	session := strings.TrimSpace(resp.Result)
	if session == "" {
		return "", errors.New("authentication returned no session id")
	}
	return session, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ port.AccountingClient = (*Client)(nil)
