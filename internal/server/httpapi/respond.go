package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/murichu/go-auth-service/internal/common"
	"github.com/murichu/go-auth-service/internal/server/otp"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, response{Success: false, Message: errMessage})
}

// respondError translates service errors into HTTP statuses. Unexpected
// errors are logged and reported with a generic message so internals do not
// leak to clients.
func (s *HTTPServer) respondError(c *gin.Context, err error) {
	var rl *otp.RateLimitError
	switch {
	case errors.As(err, &rl):
		newErrorResponse(c, http.StatusTooManyRequests, rl.Error())
	case errors.Is(err, common.ErrMissingFields),
		errors.Is(err, common.ErrInvalidEmail),
		errors.Is(err, common.ErrWeakPassword),
		errors.Is(err, common.ErrPasswordMismatch),
		errors.Is(err, common.ErrConflict),
		errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrOTPInvalid),
		errors.Is(err, common.ErrOTPExpired),
		errors.Is(err, common.ErrAlreadyVerified):
		newErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		newErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, common.ErrSessionMismatch):
		newErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrNotFound):
		// an authenticated request whose user record no longer exists; the
		// reset endpoints report unknown emails as 400 before reaching here
		newErrorResponse(c, http.StatusNotFound, "user not found")
	default:
		s.logger.Error(c.Request.Context(), "request failed", "error", err)
		newErrorResponse(c, http.StatusInternalServerError, "internal error")
	}
}
