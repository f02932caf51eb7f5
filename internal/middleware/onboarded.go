package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
	"talkify/api/internal/response"
)

// RequireOnboarded must run after Auth.
func RequireOnboarded(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Abort(c, log, apperr.Authentication("Unauthorized"))
			return
		}

		if !user.IsOnboarded {
			response.Abort(c, log, apperr.Forbidden("Please complete onboarding first"))
			return
		}

		c.Next()
	}
}
