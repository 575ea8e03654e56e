package auth

import (
	"errors"
	"net/http"

	"cms-api/pkg/logger"
	"cms-api/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// ErrorClassifier runs the rest of the chain and turns the last recorded error
// into a JSON response, unless a handler already wrote one.
//
// Token library errors are classified into TOKEN_EXPIRED or TOKEN_MALFORMED;
// every auth failure answers 401 with {"error": message, "code": kind}.
// Anything else answers 500 without leaking the cause.
func ErrorClassifier(am *metrics.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var ae *Error
		if !errors.As(err, &ae) && isTokenLibraryError(err) {
			ae = Classify(err)
		}
		if ae == nil {
			logger.FromGin(c).Error("unhandled request error", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		am.Rejected(string(ae.Kind))
		logger.FromGin(c).Info("auth rejected", "kind", ae.Kind, "reason", ae.Message)
		c.JSON(http.StatusUnauthorized, gin.H{"error": ae.Message, "code": ae.Kind})
	}
}
