package models

import "time"

type User struct {
	ID               string
	Email            string
	PasswordHash     []byte
	FullName         string
	ProfilePic       string
	Bio              string
	NativeLanguage   string
	LearningLanguage string
	Location         string
	IsOnboarded      bool
	Friends          []string
	RefreshToken     *string
	ChatSyncedAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasFriend reports whether id is in the user's friends set.
func (u User) HasFriend(id string) bool {
	for _, friend := range u.Friends {
		if friend == id {
			return true
		}
	}
	return false
}

// Sanitized returns a copy without credential material.
func (u User) Sanitized() User {
	u.PasswordHash = nil
	u.RefreshToken = nil
	return u
}

// PublicProfile is the projection other users see of someone.
type PublicProfile struct {
	ID               string `json:"_id"`
	FullName         string `json:"fullName"`
	ProfilePic       string `json:"profilePic"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
}

func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:               u.ID,
		FullName:         u.FullName,
		ProfilePic:       u.ProfilePic,
		NativeLanguage:   u.NativeLanguage,
		LearningLanguage: u.LearningLanguage,
	}
}

type OnboardingProfile struct {
	FullName         string
	Bio              string
	NativeLanguage   string
	LearningLanguage string
	Location         string
}
