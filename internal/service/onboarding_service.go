package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
	"talkify/api/internal/chat"
	"talkify/api/internal/models"
	"talkify/api/internal/repository"
)

type OnboardingService struct {
	users UserStore
	chat  chat.Provider
	log   zerolog.Logger
}

func NewOnboardingService(users UserStore, chatProvider chat.Provider, log zerolog.Logger) *OnboardingService {
	return &OnboardingService{users: users, chat: chatProvider, log: log}
}

// Complete fills in the profile and marks the user onboarded, then pushes
// the new profile to the chat provider. A chat failure is reported to the
// caller but the profile stays saved; the resync job retries it later.
func (s *OnboardingService) Complete(ctx context.Context, actorID string, profile models.OnboardingProfile) (models.User, error) {
	profile = models.OnboardingProfile{
		FullName:         strings.TrimSpace(profile.FullName),
		Bio:              strings.TrimSpace(profile.Bio),
		NativeLanguage:   strings.TrimSpace(profile.NativeLanguage),
		LearningLanguage: strings.TrimSpace(profile.LearningLanguage),
		Location:         strings.TrimSpace(profile.Location),
	}

	if missing := missingFields(profile); len(missing) > 0 {
		return models.User{}, apperr.Validation("All fields are required: " + strings.Join(missing, ", "))
	}

	user, err := s.users.CompleteOnboarding(ctx, actorID, profile)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("User not found")
		}
		return models.User{}, apperr.Internal("Failed to complete onboarding", err)
	}

	if err := s.chat.UpsertUser(ctx, chatProfile(user)); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("chat sync after onboarding failed")
		return user.Sanitized(), apperr.Upstream("Profile saved but chat sync failed", err)
	}
	if err := s.users.MarkChatSynced(ctx, user.ID, user.UpdatedAt); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("mark chat synced failed")
	}

	return user.Sanitized(), nil
}

func missingFields(p models.OnboardingProfile) []string {
	var missing []string
	if p.FullName == "" {
		missing = append(missing, "fullName")
	}
	if p.Bio == "" {
		missing = append(missing, "bio")
	}
	if p.NativeLanguage == "" {
		missing = append(missing, "nativeLanguage")
	}
	if p.LearningLanguage == "" {
		missing = append(missing, "learningLanguage")
	}
	if p.Location == "" {
		missing = append(missing, "location")
	}
	return missing
}
