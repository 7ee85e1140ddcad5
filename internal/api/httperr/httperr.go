// Package httperr maps service and repository errors onto HTTP responses.
// Every handler reports failures through Write so that clients see one
// error shape, {"error": ..., "details": ...}, and raw database or remote
// errors stay in the server log.
package httperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MiRedo238/Chemsphere-sub000/internal/auth"
	"github.com/MiRedo238/Chemsphere-sub000/internal/csvio"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/repositories"
	"github.com/MiRedo238/Chemsphere-sub000/internal/pubchem"
	"github.com/MiRedo238/Chemsphere-sub000/internal/services"
	"github.com/MiRedo238/Chemsphere-sub000/internal/storage"
)

// Status returns the HTTP status for err and the message clients see.
func Status(err error) (int, string) {
	var (
		verr   *services.ValidationError
		rowErr *csvio.RowError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &rowErr):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, pubchem.ErrNotFound):
		return http.StatusNotFound, "No compound matches that name"
	case errors.Is(err, repositories.ErrInsufficientStock):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, auth.ErrInactive):
		return http.StatusForbidden, "Account is deactivated"
	case errors.Is(err, services.ErrSignupDisabled):
		return http.StatusForbidden, "Self-registration is disabled"
	case errors.Is(err, services.ErrArchiveDisabled):
		return http.StatusServiceUnavailable, "Export archiving is not configured"
	case errors.Is(err, pubchem.ErrDisabled):
		return http.StatusServiceUnavailable, "Chemical lookup is disabled"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// Write aborts the request with the response for err. Server errors are
// logged with the request id; their text never reaches the client.
func Write(c *gin.Context, err error) {
	status, msg := Status(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", err)
	}

	body := gin.H{"error": msg}
	var stock *repositories.StockError
	if errors.As(err, &stock) {
		details := gin.H{
			"chemical_id":   stock.ChemicalID,
			"chemical_name": stock.ChemicalName,
			"requested":     stock.Requested,
		}
		if stock.Available >= 0 {
			details["available"] = stock.Available
		}
		body["details"] = details
	}
	var rowErr *csvio.RowError
	if errors.As(err, &rowErr) {
		body["details"] = gin.H{"line": rowErr.Line, "field": rowErr.Field}
	}
	c.AbortWithStatusJSON(status, body)
}

// Failed reports whether err ended the request. A nil error, or one that
// only says the audit insert after a committed write failed, does not; the
// latter is logged and the handler carries on with its success response.
func Failed(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, services.ErrAuditNotRecorded) {
		_ = c.Error(err)
		slog.Warn("write committed without audit entry",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", err)
		return false
	}
	Write(c, err)
	return true
}

// BadRequest aborts with 400 for malformed input the services never saw.
func BadRequest(c *gin.Context, msg string, details ...interface{}) {
	body := gin.H{"error": msg}
	if len(details) > 0 {
		body["details"] = details[0]
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}
