package models

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
)

type FriendRequest struct {
	ID          string
	SenderID    string
	RecipientID string
	Status      FriendRequestStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FriendRequestView is a request with the counterpart's public profile
// expanded. Which side is expanded depends on the listing.
type FriendRequestView struct {
	FriendRequest
	Counterpart PublicProfile
}
