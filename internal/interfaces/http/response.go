package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/infrastructure/worker"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version"`
	Worker    *worker.Stats `json:"worker,omitempty"`
}

// WorkerStats reports background worker progress
type WorkerStats interface {
	Stats() worker.Stats
}

const version = "1.0.0"

func healthCheck(ws WorkerStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   version,
		}
		if ws != nil {
			stats := ws.Stats()
			resp.Worker = &stats
		}
		ok(c, resp)
	}
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// statusFor maps an error kind onto an HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.StateConflict, apperr.ValidationRequired:
		return http.StatusConflict
	case apperr.ConnectionError:
		return http.StatusServiceUnavailable
	case apperr.ExternalServiceError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error response. Errors without a kind are reported
// as internal errors and their text is only logged.
func fail(c *gin.Context, logger Logger, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" && ae.Err == nil {
		msg = ae.Message
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		msg = "internal server error"
	}
	c.JSON(status, Response{Success: false, Error: msg, Code: string(kind)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg, Code: string(apperr.InvalidInput)})
}
