package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
	"talkify/api/internal/models"
	"talkify/api/internal/repository"
	"talkify/api/internal/response"
	"talkify/api/internal/security"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	currentUserKey = "current_user"
)

type UserLookup interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Auth resolves the session from the access token and stores the user on
// the request. Handlers behind it read the actor only via CurrentUser.
func Auth(tokens *security.TokenIssuer, users UserLookup, revoked RevocationChecker, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := AccessToken(c)
		if tokenStr == "" {
			response.Abort(c, log, apperr.Authentication("Unauthorized - No token provided"))
			return
		}

		claims, err := tokens.VerifyAccessToken(tokenStr)
		if err != nil {
			if errors.Is(err, security.ErrSecretsMissing) {
				response.Abort(c, log, apperr.Configuration("Server configuration error", err))
				return
			}
			response.Abort(c, log, apperr.Authentication("Unauthorized - Invalid token"))
			return
		}

		isRevoked, err := revoked.IsRevoked(c.Request.Context(), tokenStr)
		if err != nil {
			response.Abort(c, log, apperr.Internal("Internal server error", err))
			return
		}
		if isRevoked {
			response.Abort(c, log, apperr.Authentication("Unauthorized - Token revoked"))
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				response.Abort(c, log, apperr.Authentication("Unauthorized - User not found"))
				return
			}
			response.Abort(c, log, apperr.Internal("Internal server error", err))
			return
		}

		c.Set(currentUserKey, user.Sanitized())
		c.Next()
	}
}

// AccessToken reads the access token from its cookie, falling back to an
// Authorization bearer header.
func AccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}

	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
