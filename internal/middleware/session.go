package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/vocab-runner/internal/response"
	"github.com/stemsi/vocab-runner/internal/service"
)

// ContextKeySessionID is the Gin context key for the parsed :session_id.
const ContextKeySessionID = "session_id"

// RequireSessionOwner parses :session_id and rejects sessions the caller does
// not own. Must run after RequireToken.
func RequireSessionOwner(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		id, err := uuid.Parse(c.Param("session_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		if !sessions.Owns(claims, id) {
			response.AbortFail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}

		c.Set(ContextKeySessionID, id)
		c.Next()
	}
}

// GetSessionID retrieves the session id set by RequireSessionOwner.
func GetSessionID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ContextKeySessionID)
	sid, _ := id.(uuid.UUID)
	return sid
}
