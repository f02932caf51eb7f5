package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"talkify/api/internal/apperr"
	"talkify/api/internal/middleware"
	"talkify/api/internal/models"
	"talkify/api/internal/response"
	"talkify/api/internal/security"
	"talkify/api/internal/service"
)

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type onboardingRequest struct {
	FullName         string `json:"fullName"`
	Bio              string `json:"bio"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
	Location         string `json:"location"`
}

type userResponse struct {
	ID               string    `json:"_id"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	ProfilePic       string    `json:"profilePic"`
	Bio              string    `json:"bio"`
	NativeLanguage   string    `json:"nativeLanguage"`
	LearningLanguage string    `json:"learningLanguage"`
	Location         string    `json:"location"`
	IsOnboarded      bool      `json:"isOnboarded"`
	Friends          []string  `json:"friends"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func newUserResponse(user models.User) userResponse {
	friends := user.Friends
	if friends == nil {
		friends = []string{}
	}
	return userResponse{
		ID:               user.ID,
		Email:            user.Email,
		FullName:         user.FullName,
		ProfilePic:       user.ProfilePic,
		Bio:              user.Bio,
		NativeLanguage:   user.NativeLanguage,
		LearningLanguage: user.LearningLanguage,
		Location:         user.Location,
		IsOnboarded:      user.IsOnboarded,
		Friends:          friends,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
}

func (h HandlerSet) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.log, apperr.Wrap(apperr.KindValidation, "Invalid request body", err))
		return
	}

	result, err := h.services.Auth.Signup(c.Request.Context(), service.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	h.setSessionCookies(c, result.Tokens)
	response.JSON(c, http.StatusCreated, newUserResponse(result.User), "User created successfully")
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.log, apperr.Wrap(apperr.KindValidation, "Invalid request body", err))
		return
	}

	result, err := h.services.Auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	h.setSessionCookies(c, result.Tokens)
	response.JSON(c, http.StatusOK, newUserResponse(result.User), "Logged in successfully")
}

// Logout needs no valid session; cookies are cleared in every case.
func (h HandlerSet) Logout(c *gin.Context) {
	accessToken := middleware.AccessToken(c)
	refreshToken, _ := c.Cookie(middleware.RefreshTokenCookie)

	h.clearSessionCookies(c)

	if err := h.services.Auth.Logout(c.Request.Context(), accessToken, refreshToken); err != nil {
		response.Error(c, h.log, err)
		return
	}
	response.JSON(c, http.StatusOK, nil, "Logged out successfully")
}

func (h HandlerSet) Onboarding(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}

	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.log, apperr.Wrap(apperr.KindValidation, "Invalid request body", err))
		return
	}

	updated, err := h.services.Onboarding.Complete(c.Request.Context(), user.ID, models.OnboardingProfile{
		FullName:         req.FullName,
		Bio:              req.Bio,
		NativeLanguage:   req.NativeLanguage,
		LearningLanguage: req.LearningLanguage,
		Location:         req.Location,
	})
	if err != nil {
		response.Error(c, h.log, err)
		return
	}

	response.JSON(c, http.StatusOK, newUserResponse(updated), "Onboarding completed successfully")
}

func (h HandlerSet) IsLoggedIn(c *gin.Context) {
	user, ok := h.actor(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, newUserResponse(user), "User is logged in")
}

func (h HandlerSet) secureCookies() bool {
	return h.cfg.Security.CookieSecure || h.cfg.IsProduction()
}

func (h HandlerSet) setSessionCookies(c *gin.Context, tokens security.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, tokens.AccessToken, int(h.cfg.Security.JWTAccessTTL.Seconds()), "/", "", h.secureCookies(), true)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.RefreshTokenCookie, tokens.RefreshToken, int(h.cfg.Security.JWTRefreshTTL.Seconds()), "/", "", h.secureCookies(), true)
}

func (h HandlerSet) clearSessionCookies(c *gin.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(name, "", -1, "/", "", h.secureCookies(), true)
	}
}
