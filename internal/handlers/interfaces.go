package handlers

import (
	"context"

	"talkify/api/internal/models"
	"talkify/api/internal/service"
)

// AuthService issues and revokes sessions.
type AuthService interface {
	Signup(ctx context.Context, input service.SignupInput) (service.AuthResult, error)
	Login(ctx context.Context, input service.LoginInput) (service.AuthResult, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

type OnboardingService interface {
	Complete(ctx context.Context, actorID string, profile models.OnboardingProfile) (models.User, error)
}

// FriendService captures the social graph operations behind /users.
type FriendService interface {
	SendRequest(ctx context.Context, actor models.User, recipientID string) (models.FriendRequest, error)
	AcceptRequest(ctx context.Context, actorID, requestID string) (models.FriendRequest, error)
	ListIncoming(ctx context.Context, actorID string) ([]models.FriendRequestView, error)
	ListOutgoing(ctx context.Context, actorID string) ([]models.FriendRequestView, error)
	ListAccepted(ctx context.Context, actorID string) ([]models.FriendRequestView, error)
	ListFriends(ctx context.Context, actorID string) ([]models.PublicProfile, error)
	Recommend(ctx context.Context, actorID string) ([]models.User, error)
}

type ChatService interface {
	StreamToken(ctx context.Context, actorID string) (string, error)
}

type AvatarService interface {
	Upload(ctx context.Context, input service.AvatarInput) (models.User, error)
}

// Pinger is a dependency the health endpoint pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
