package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
	"talkify/api/internal/config"
	"talkify/api/internal/middleware"
	"talkify/api/internal/models"
	"talkify/api/internal/response"
)

type Services struct {
	Auth       AuthService
	Onboarding OnboardingService
	Friends    FriendService
	Chat       ChatService
	Avatars    AvatarService
}

// HandlerSet owns the HTTP surface under /api.
type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	services Services
	session  gin.HandlerFunc
	limiter  middleware.RateLimiter
	checks   map[string]Pinger
}

// NewHandlerSet wires services behind the given session middleware.
// limiter guards the credential endpoints; /healthz pings each of checks.
func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	services Services,
	session gin.HandlerFunc,
	limiter middleware.RateLimiter,
	checks map[string]Pinger,
) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		services: services,
		session:  session,
		limiter:  limiter,
		checks:   checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	onboarded := middleware.RequireOnboarded(h.log)
	credentials := middleware.RateLimit(h.limiter, h.log)

	auth := router.Group("/auth")
	{
		auth.POST("/signup", credentials, h.Signup)
		auth.POST("/login", credentials, h.Login)
		auth.POST("/logout", h.Logout)
		auth.POST("/onboarding", h.session, h.Onboarding)
		auth.GET("/is-logged-in", h.session, h.IsLoggedIn)
	}

	users := router.Group("/users", h.session)
	{
		users.GET("", onboarded, h.Recommendations)
		users.GET("/friends", h.Friends)
		users.POST("/friend-request/:id", onboarded, h.SendFriendRequest)
		users.PUT("/friend-request/accept/:id", h.AcceptFriendRequest)
		users.GET("/friend-requests", h.FriendRequests)
		users.GET("/outgoing-friend-requests", h.OutgoingFriendRequests)
		users.POST("/avatar", h.UploadAvatar)
	}

	chat := router.Group("/chat", h.session)
	chat.GET("/stream-token", h.StreamToken)
}

// actor returns the session user or renders 401 when the session
// middleware did not run.
func (h HandlerSet) actor(c *gin.Context) (models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, h.log, apperr.Authentication("Unauthorized"))
		return models.User{}, false
	}
	return user, true
}
