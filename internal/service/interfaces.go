package service

import (
	"context"
	"io"
	"time"

	"talkify/api/internal/models"
)

// UserStore persists user accounts and their friends sets.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, id string, token *string) error
	CompleteOnboarding(ctx context.Context, id string, profile models.OnboardingProfile) (models.User, error)
	UpdateProfilePic(ctx context.Context, id string, url string) (models.User, error)
	AddFriend(ctx context.Context, id string, friendID string) error
	ListRecommendations(ctx context.Context, id string) ([]models.User, error)
	ListFriends(ctx context.Context, id string) ([]models.PublicProfile, error)
	ListPendingChatSync(ctx context.Context, limit int) ([]models.User, error)
	MarkChatSynced(ctx context.Context, id string, version time.Time) error
}

// FriendRequestStore persists friend requests.
type FriendRequestStore interface {
	Create(ctx context.Context, req models.FriendRequest) error
	GetByIDForUpdate(ctx context.Context, id string) (models.FriendRequest, error)
	FindBetween(ctx context.Context, userA, userB string) (models.FriendRequest, error)
	MarkAccepted(ctx context.Context, id string) error
	ListForRecipient(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequestView, error)
	ListForSender(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequestView, error)
}

// Transactor runs fn as one all-or-nothing unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TokenRevoker blocks access tokens before their natural expiry.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// AvatarStore writes avatar objects and returns their public URL.
type AvatarStore interface {
	PutAvatar(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}
