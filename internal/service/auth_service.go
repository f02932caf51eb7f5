package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
	"talkify/api/internal/chat"
	"talkify/api/internal/ids"
	"talkify/api/internal/models"
	"talkify/api/internal/repository"
	"talkify/api/internal/security"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type AuthService struct {
	users    UserStore
	tx       Transactor
	tokens   *security.TokenIssuer
	chat     chat.Provider
	denylist TokenRevoker
	log      zerolog.Logger
	avatar   func() string
}

func NewAuthService(
	users UserStore,
	tx Transactor,
	tokens *security.TokenIssuer,
	chatProvider chat.Provider,
	denylist TokenRevoker,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tx:       tx,
		tokens:   tokens,
		chat:     chatProvider,
		denylist: denylist,
		log:      log,
		avatar:   randomAvatar,
	}
}

func randomAvatar() string {
	return fmt.Sprintf("https://avatar.iran.liara.run/public/%d.png", rand.Intn(100)+1)
}

type SignupInput struct {
	FullName string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User   models.User
	Tokens security.TokenPair
}

// Signup creates the account, its chat identity and a session as one unit.
// If any step fails nothing is persisted.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (AuthResult, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if input.FullName == "" || input.Email == "" || input.Password == "" {
		return AuthResult{}, apperr.Validation("All fields are required")
	}
	if len(input.Password) < minPasswordLength {
		return AuthResult{}, apperr.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if !emailPattern.MatchString(input.Email) {
		return AuthResult{}, apperr.Validation("Invalid email format")
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, emailTaken()
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, apperr.Internal("Failed to create account", err)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, apperr.Internal("Failed to create account", err)
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		FullName:     input.FullName,
		ProfilePic:   s.avatar(),
	}

	var result AuthResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		created, err := s.users.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}

		if err := s.chat.UpsertUser(ctx, chatProfile(created)); err != nil {
			return err
		}
		if err := s.users.MarkChatSynced(ctx, created.ID, created.UpdatedAt); err != nil {
			return err
		}

		tokens, err := s.issueTokens(ctx, created.ID)
		if err != nil {
			return err
		}

		result = AuthResult{User: created.Sanitized(), Tokens: tokens}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return AuthResult{}, emailTaken()
		}
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("signup rolled back")
		return AuthResult{}, apperr.Internal("Failed to create account", err)
	}

	s.log.Info().Str("user_id", result.User.ID).Msg("user signed up")
	return result, nil
}

func emailTaken() error {
	return apperr.Conflict("Email already exists, please use a different one")
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, apperr.Validation("All fields are required")
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, invalidCredentials()
		}
		return AuthResult{}, apperr.Internal("Failed to log in", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return AuthResult{}, invalidCredentials()
	}
	if !ok {
		return AuthResult{}, invalidCredentials()
	}

	tokens, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		if errors.Is(err, security.ErrSecretsMissing) {
			return AuthResult{}, apperr.Configuration("Server configuration error", err)
		}
		return AuthResult{}, apperr.Internal("Failed to log in", err)
	}

	return AuthResult{User: user.Sanitized(), Tokens: tokens}, nil
}

func invalidCredentials() error {
	return apperr.Authentication("Invalid email or password")
}

// Logout ends whichever session the presented tokens identify. It never
// fails because of a bad or missing token: the caller is logged out either
// way.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var userID string

	if accessToken != "" {
		if claims, err := s.tokens.VerifyAccessToken(accessToken); err == nil {
			userID = claims.UserID
			if err := s.denylist.Revoke(ctx, accessToken, claims.ExpiresAt.Time); err != nil {
				s.log.Warn().Err(err).Str("user_id", userID).Msg("revoke access token failed")
			}
		}
	}
	if userID == "" && refreshToken != "" {
		if claims, err := s.tokens.VerifyRefreshToken(refreshToken); err == nil {
			userID = claims.UserID
		}
	}
	if userID == "" {
		return nil
	}

	if err := s.users.SetRefreshToken(ctx, userID, nil); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Internal("Failed to log out", err)
	}
	return nil
}

// issueTokens signs a new pair and stores the refresh token, replacing any
// previous one.
func (s *AuthService) issueTokens(ctx context.Context, userID string) (security.TokenPair, error) {
	tokens, err := s.tokens.Issue(userID)
	if err != nil {
		return security.TokenPair{}, err
	}
	if err := s.users.SetRefreshToken(ctx, userID, &tokens.RefreshToken); err != nil {
		return security.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return tokens, nil
}

func chatProfile(user models.User) chat.Profile {
	return chat.Profile{
		ID:    user.ID,
		Name:  user.FullName,
		Image: user.ProfilePic,
	}
}
