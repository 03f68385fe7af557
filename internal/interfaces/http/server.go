// Package http exposes the document pipeline over a REST API.
// Handlers translate requests to application service calls and nothing more.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-booking/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxUploadSize int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "0.0.0.0",
		Port:          8000,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  120 * time.Second,
		MaxUploadSize: service.DefaultMaxUploadSize,
	}
}

// Services bundles the application services the API is served from
type Services struct {
	Documents  service.DocumentService
	Export     service.ExportService
	Accounting AccountingQueries
	// Worker is optional; when set its stats are reported by /health
	Worker WorkerStats
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = service.DefaultMaxUploadSize
	}

	server := &Server{
		config: config,
		router: gin.New(),
		logger: logger,
	}
	server.setupMiddleware()
	server.setupRoutes(services)
	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes(services Services) {
	docs := NewDocumentHandlers(services.Documents, services.Export, s.config.MaxUploadSize, s.logger)
	accounting := NewAccountingHandlers(services.Accounting, s.logger)

	s.router.GET("/health", healthCheck(services.Worker))

	api := s.router.Group("/api")
	{
		documents := api.Group("/documents")
		documents.POST("/upload", docs.Upload)
		documents.GET("", docs.List)
		documents.GET("/export", docs.Export)
		documents.GET("/:id", docs.Get)
		documents.GET("/:id/audit", docs.AuditTrail)
		documents.GET("/:id/validations", docs.Validations)
		documents.POST("/:id/process", docs.Process)
		documents.POST("/:id/validate", docs.Validate)
		documents.POST("/:id/book", docs.Book)
		documents.POST("/:id/upload-to-yuki", docs.Book)
		documents.POST("/:id/retry", docs.Retry)

		acc := api.Group("/accounting")
		acc.GET("/administrations", accounting.Administrations)
		acc.GET("/:admin/gl-accounts", accounting.GLAccounts)
		acc.GET("/:admin/gl-scheme", accounting.GLAccountScheme)
		acc.GET("/:admin/vat-codes", accounting.VATCodes)
		acc.GET("/:admin/start-balance", accounting.StartBalance)
		acc.GET("/:admin/transactions/:tx", accounting.TransactionDetails)
		acc.GET("/:admin/transactions/:tx/document", accounting.TransactionDocument)
		acc.GET("/:admin/documents", accounting.SearchDocuments)
		acc.GET("/:admin/documents/:doc/binary", accounting.DocumentBinary)
		acc.GET("/:admin/contacts", accounting.SearchContacts)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
