package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
	"talkify/api/internal/ids"
	"talkify/api/internal/models"
	"talkify/api/internal/repository"
)

type FriendService struct {
	users    UserStore
	requests FriendRequestStore
	tx       Transactor
	log      zerolog.Logger
}

func NewFriendService(users UserStore, requests FriendRequestStore, tx Transactor, log zerolog.Logger) *FriendService {
	return &FriendService{
		users:    users,
		requests: requests,
		tx:       tx,
		log:      log,
	}
}

func (s *FriendService) SendRequest(ctx context.Context, actor models.User, recipientID string) (models.FriendRequest, error) {
	if recipientID == "" {
		return models.FriendRequest{}, apperr.Validation("Recipient is required")
	}
	if recipientID == actor.ID {
		return models.FriendRequest{}, apperr.Validation("You can't send friend request to yourself")
	}

	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.FriendRequest{}, apperr.NotFound("Recipient not found")
		}
		return models.FriendRequest{}, apperr.Internal("Failed to send friend request", err)
	}

	if actor.HasFriend(recipient.ID) || recipient.HasFriend(actor.ID) {
		return models.FriendRequest{}, apperr.Conflict("You are already friends with this user")
	}

	if _, err := s.requests.FindBetween(ctx, actor.ID, recipient.ID); err == nil {
		return models.FriendRequest{}, duplicateRequest()
	} else if !errors.Is(err, repository.ErrFriendRequestNotFound) {
		return models.FriendRequest{}, apperr.Internal("Failed to send friend request", err)
	}

	req := models.FriendRequest{
		ID:          ids.New(),
		SenderID:    actor.ID,
		RecipientID: recipient.ID,
		Status:      models.FriendRequestPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		// lost a race with a concurrent send for the same pair
		if errors.Is(err, repository.ErrDuplicateFriendRequest) {
			return models.FriendRequest{}, duplicateRequest()
		}
		return models.FriendRequest{}, apperr.Internal("Failed to send friend request", err)
	}

	s.log.Info().Str("request_id", req.ID).Str("sender_id", req.SenderID).Str("recipient_id", req.RecipientID).Msg("friend request sent")
	return req, nil
}

func duplicateRequest() error {
	return apperr.Conflict("A friend request already exists between you and this user")
}

// AcceptRequest flips a pending request to accepted and links both users as
// friends. The status change and both friends-set updates commit together.
func (s *FriendService) AcceptRequest(ctx context.Context, actorID string, requestID string) (models.FriendRequest, error) {
	var accepted models.FriendRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrFriendRequestNotFound) {
				return apperr.NotFound("Friend request not found")
			}
			return err
		}

		if req.RecipientID != actorID {
			return apperr.Forbidden("You are not authorized to accept this request")
		}
		if req.Status == models.FriendRequestAccepted {
			return apperr.Conflict("Friend request already accepted")
		}

		if err := s.requests.MarkAccepted(ctx, req.ID); err != nil {
			if errors.Is(err, repository.ErrFriendRequestNotPending) {
				return apperr.Conflict("Friend request already accepted")
			}
			return err
		}
		if err := s.users.AddFriend(ctx, req.SenderID, req.RecipientID); err != nil {
			return err
		}
		if err := s.users.AddFriend(ctx, req.RecipientID, req.SenderID); err != nil {
			return err
		}

		req.Status = models.FriendRequestAccepted
		accepted = req
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return models.FriendRequest{}, err
		}
		return models.FriendRequest{}, apperr.Internal("Failed to accept friend request", err)
	}

	s.log.Info().Str("request_id", accepted.ID).Msg("friend request accepted")
	return accepted, nil
}

// ListIncoming returns pending requests addressed to the actor.
func (s *FriendService) ListIncoming(ctx context.Context, actorID string) ([]models.FriendRequestView, error) {
	views, err := s.requests.ListForRecipient(ctx, actorID, models.FriendRequestPending)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch friend requests", err)
	}
	return nonNil(views), nil
}

// ListOutgoing returns pending requests the actor sent.
func (s *FriendService) ListOutgoing(ctx context.Context, actorID string) ([]models.FriendRequestView, error) {
	views, err := s.requests.ListForSender(ctx, actorID, models.FriendRequestPending)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch outgoing friend requests", err)
	}
	return nonNil(views), nil
}

// ListAccepted returns accepted requests the actor sent. Requests the actor
// accepted from others are not included.
func (s *FriendService) ListAccepted(ctx context.Context, actorID string) ([]models.FriendRequestView, error) {
	views, err := s.requests.ListForSender(ctx, actorID, models.FriendRequestAccepted)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch friend requests", err)
	}
	return nonNil(views), nil
}

func (s *FriendService) ListFriends(ctx context.Context, actorID string) ([]models.PublicProfile, error) {
	friends, err := s.users.ListFriends(ctx, actorID)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch friends", err)
	}
	if friends == nil {
		friends = []models.PublicProfile{}
	}
	return friends, nil
}

// Recommend returns onboarded users who are neither the actor nor already
// the actor's friends.
func (s *FriendService) Recommend(ctx context.Context, actorID string) ([]models.User, error) {
	users, err := s.users.ListRecommendations(ctx, actorID)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch recommended users", err)
	}

	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitized())
	}
	return out, nil
}

func nonNil(views []models.FriendRequestView) []models.FriendRequestView {
	if views == nil {
		return []models.FriendRequestView{}
	}
	return views
}
