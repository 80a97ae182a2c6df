package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/murichu/go-auth-service/internal/common"
)

const (
	ctxKeyUserID    = "UserID"
	ctxKeySessionID = "SessionID"
)

// authRequired authenticates the request from the session cookie alone.
// The Authorization header is ignored. On success the user and session ids
// are stored on the gin context for the handler.
func (s *HTTPServer) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(common.TokenCookieName)
		if err != nil || tokenString == "" {
			s.respondError(c, common.ErrUnauthenticated)
			return
		}

		session, err := s.service.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.Set(ctxKeyUserID, session.UserID)
		c.Set(ctxKeySessionID, session.SessionID)
		c.Next()
	}
}

// sessionFromContext returns the ids stored by authRequired.
func sessionFromContext(c *gin.Context) (userID, sessionID string, ok bool) {
	userID = c.GetString(ctxKeyUserID)
	sessionID = c.GetString(ctxKeySessionID)
	return userID, sessionID, userID != ""
}
