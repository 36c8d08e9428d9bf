// Package apierror turns domain errors into JSON responses.
package apierror

import (
	"net/http"

	"course-ledger/internal/domain/billing"
	"course-ledger/internal/logging"

	"github.com/gin-gonic/gin"
)

var statusByKind = map[billing.Kind]int{
	billing.KindNotFound:            http.StatusNotFound,
	billing.KindConflict:            http.StatusConflict,
	billing.KindInsufficientFunds:   http.StatusUnprocessableEntity,
	billing.KindVerificationFailed:  http.StatusBadRequest,
	billing.KindProviderUnavailable: http.StatusBadGateway,
	billing.KindInvalidInput:        http.StatusBadRequest,
}

// Status maps err to an HTTP status; anything that is not a domain error is a 500.
func Status(err error) int {
	if kind, ok := billing.KindOf(err); ok {
		if s, ok := statusByKind[kind]; ok {
			return s
		}
	}
	return http.StatusInternalServerError
}

// Respond writes {"error": message, "code": kind}. Unexpected errors are
// logged and hidden behind a generic message.
func Respond(c *gin.Context, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logging.From(c).Error("request failed", "error", err)
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}

	kind, _ := billing.KindOf(err)
	c.JSON(status, gin.H{
		"error": billing.Message(err, "Internal error"),
		"code":  kind,
	})
}
