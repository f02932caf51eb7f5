package service

import (
	"context"

	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
	"talkify/api/internal/chat"
	"talkify/api/internal/models"
)

type ChatService struct {
	users UserStore
	chat  chat.Provider
	log   zerolog.Logger
}

func NewChatService(users UserStore, chatProvider chat.Provider, log zerolog.Logger) *ChatService {
	return &ChatService{users: users, chat: chatProvider, log: log}
}

// StreamToken returns a chat client token for the actor.
func (s *ChatService) StreamToken(ctx context.Context, actorID string) (string, error) {
	token, err := s.chat.CreateToken(actorID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", actorID).Msg("create chat token failed")
		return "", apperr.Upstream("Failed to generate chat token", err)
	}
	return token, nil
}

type ResyncReport struct {
	Synced int
	Failed int
}

// ResyncStale re-upserts up to limit users whose chat identity lags their
// profile. Each user is marked synced at the version that was pushed, so a
// change landing mid-run is picked up by the next run. Failures are logged per user and counted; they do not stop the
// batch.
func (s *ChatService) ResyncStale(ctx context.Context, limit int) (ResyncReport, error) {
	users, err := s.users.ListPendingChatSync(ctx, limit)
	if err != nil {
		return ResyncReport{}, apperr.Internal("Failed to list users pending chat sync", err)
	}

	var report ResyncReport
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.resyncOne(ctx, user); err != nil {
			report.Failed++
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("chat resync failed")
			continue
		}
		report.Synced++
	}
	return report, nil
}

func (s *ChatService) resyncOne(ctx context.Context, user models.User) error {
	if err := s.chat.UpsertUser(ctx, chatProfile(user)); err != nil {
		return err
	}
	return s.users.MarkChatSynced(ctx, user.ID, user.UpdatedAt)
}
