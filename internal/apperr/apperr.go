// Package apperr defines the error taxonomy shared by all core services and
// its mapping onto HTTP responses. Services return these errors; the gin
// handlers hand them to WriteJSON and never build status codes themselves.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Error is a caller-facing failure with a stable machine-readable code.
type Error struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Msg    string `json:"message"`
}

func (e *Error) Error() string { return e.Msg }

// Validation rejects malformed input before any mutation.
func Validation(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "validation", Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown match, user or feature.
func NotFound(format string, args ...any) *Error {
	return &Error{Status: http.StatusNotFound, Code: "not_found", Msg: fmt.Sprintf(format, args...)}
}

// Forbidden reports an identity that is not allowed to perform the operation,
// e.g. a non-guardian approving or a non-participant unmatching.
func Forbidden(format string, args ...any) *Error {
	return &Error{Status: http.StatusForbidden, Code: "forbidden", Msg: fmt.Sprintf(format, args...)}
}

// Conflict reports a state that makes the operation impossible, e.g. a match
// creation attempt against a terminally rejected pair.
func Conflict(code, format string, args ...any) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// UndoUnavailable is returned when an undo arrives after a match was already
// created from the interaction being retracted.
func UndoUnavailable() *Error {
	return Conflict("undo_unavailable", "a match already exists for this pair; the interaction can no longer be undone")
}

// QuotaError carries the usage context clients need to render an upgrade or
// a-la-carte purchase prompt.
type QuotaError struct {
	Feature      string `json:"feature"`
	CurrentUsage int    `json:"current_usage"`
	Limit        int    `json:"limit"`
	PriceCents   *int   `json:"price_cents,omitempty"`
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d", e.Feature, e.CurrentUsage, e.Limit)
}

// WriteJSON maps an error onto the response. Unrecognized errors become 500s
// with the message included, matching how the upstream services bubble
// repository failures.
func WriteJSON(c *gin.Context, err error) {
	var appErr *Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{"code": appErr.Code, "message": appErr.Msg})
		return
	}

	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":          "quota_exceeded",
			"message":       quotaErr.Error(),
			"feature":       quotaErr.Feature,
			"current_usage": quotaErr.CurrentUsage,
			"limit":         quotaErr.Limit,
			"price_cents":   quotaErr.PriceCents,
		})
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "record not found"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"code": "timeout", "message": "request timed out"})
	case errors.Is(err, context.Canceled):
		c.JSON(499, gin.H{"code": "canceled", "message": "request was canceled"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal", "message": err.Error()})
	}
}
