package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
	"talkify/api/internal/ids"
	"talkify/api/internal/media/sniffer"
	"talkify/api/internal/models"
	"talkify/api/internal/repository"
)

type AvatarInput struct {
	UserID       string
	File         io.Reader
	Size         int64
	DeclaredType string
}

type AvatarService struct {
	users    UserStore
	store    AvatarStore
	maxBytes int64
	log      zerolog.Logger
}

func NewAvatarService(users UserStore, store AvatarStore, maxBytes int64, log zerolog.Logger) *AvatarService {
	return &AvatarService{
		users:    users,
		store:    store,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Upload stores a new profile picture and points the user's profile at it.
// The profile change bumps updated_at, which queues a chat resync.
func (s *AvatarService) Upload(ctx context.Context, input AvatarInput) (models.User, error) {
	if input.File == nil {
		return models.User{}, apperr.Validation("Avatar file is required")
	}
	if input.Size <= 0 {
		return models.User{}, apperr.Validation("Avatar file is empty")
	}
	if s.maxBytes > 0 && input.Size > s.maxBytes {
		return models.User{}, apperr.Validation(fmt.Sprintf("Avatar must be at most %d bytes", s.maxBytes))
	}

	result, head, err := sniffer.Detect(input.File)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return models.User{}, apperr.Validation("Avatar must be a JPEG, PNG, GIF or WebP image")
		}
		return models.User{}, apperr.Internal("Failed to read avatar", err)
	}
	if err := sniffer.CheckDeclared(input.DeclaredType, result); err != nil {
		return models.User{}, apperr.Validation(fmt.Sprintf("Declared content type does not match a %s image", result.Type))
	}

	body := io.MultiReader(bytes.NewReader(head), input.File)
	key := fmt.Sprintf("%s/%s.%s", input.UserID, ids.New(), result.Extension())

	url, err := s.store.PutAvatar(ctx, key, body, input.Size, result.MIME)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", input.UserID).Str("key", key).Msg("store avatar failed")
		return models.User{}, apperr.Upstream("Failed to store avatar", err)
	}

	user, err := s.users.UpdateProfilePic(ctx, input.UserID, url)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("User not found")
		}
		return models.User{}, apperr.Internal("Failed to update profile picture", err)
	}

	return user.Sanitized(), nil
}
