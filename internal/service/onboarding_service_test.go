package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"talkify/api/internal/apperr"
	"talkify/api/internal/chat"
	"talkify/api/internal/models"
)

func completeProfile() models.OnboardingProfile {
	return models.OnboardingProfile{
		FullName:         "Alice Doe",
		Bio:              "Learning Spanish for travel",
		NativeLanguage:   "english",
		LearningLanguage: "spanish",
		Location:         "Lisbon",
	}
}

func TestOnboardingComplete(t *testing.T) {
	db := newMemDB()
	db.put(models.User{ID: "alice", Email: "alice@example.com", FullName: "Alice"})
	chatProvider := &fakeChat{}
	svc := NewOnboardingService(memUsers{db}, chatProvider, zerolog.Nop())

	user, err := svc.Complete(context.Background(), "alice", completeProfile())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !user.IsOnboarded || user.Location != "Lisbon" || user.FullName != "Alice Doe" {
		t.Fatalf("unexpected user %+v", user)
	}

	stored, _ := db.user("alice")
	if !stored.IsOnboarded || stored.ChatSyncedAt == nil {
		t.Fatalf("expected stored user onboarded and synced: %+v", stored)
	}
	if len(chatProvider.upserts) != 1 || chatProvider.upserts[0].Name != "Alice Doe" {
		t.Fatalf("unexpected chat upserts %+v", chatProvider.upserts)
	}
}

func TestOnboardingMissingFields(t *testing.T) {
	db := newMemDB()
	db.put(models.User{ID: "alice", Email: "alice@example.com", FullName: "Alice"})
	svc := NewOnboardingService(memUsers{db}, &fakeChat{}, zerolog.Nop())

	profile := completeProfile()
	profile.Bio = "   "
	profile.Location = ""

	_, err := svc.Complete(context.Background(), "alice", profile)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
	if !strings.Contains(err.Error(), "bio") || !strings.Contains(err.Error(), "location") {
		t.Fatalf("expected missing fields to be named, got %q", err.Error())
	}
	if strings.Contains(err.Error(), "fullName") {
		t.Fatalf("did not expect present field in message %q", err.Error())
	}

	stored, _ := db.user("alice")
	if stored.IsOnboarded {
		t.Fatalf("expected user to stay un-onboarded")
	}
}

func TestOnboardingChatFailureKeepsProfile(t *testing.T) {
	db := newMemDB()
	db.put(models.User{ID: "alice", Email: "alice@example.com", FullName: "Alice"})
	svc := NewOnboardingService(memUsers{db}, &fakeChat{upsertErr: errBoom}, zerolog.Nop())

	_, err := svc.Complete(context.Background(), "alice", completeProfile())
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error got %v", err)
	}

	stored, _ := db.user("alice")
	if !stored.IsOnboarded {
		t.Fatalf("expected profile update to persist")
	}
	if stored.ChatSyncedAt != nil {
		t.Fatalf("expected chat identity to stay pending for resync")
	}
}

func TestOnboardingUnknownUser(t *testing.T) {
	svc := NewOnboardingService(memUsers{newMemDB()}, &fakeChat{}, zerolog.Nop())

	_, err := svc.Complete(context.Background(), "ghost", completeProfile())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestOnboardingLeavesUserPendingWhenAvatarChangesDuringSync(t *testing.T) {
	db := newMemDB()
	db.put(models.User{ID: "alice", Email: "alice@example.com", FullName: "Alice", ProfilePic: "old.png"})
	chatProvider := &fakeChat{onUpsert: func(chat.Profile) {
		u, _ := db.user("alice")
		u.ProfilePic = "new.png"
		u.UpdatedAt = u.UpdatedAt.Add(time.Second)
		db.put(u)
	}}
	svc := NewOnboardingService(memUsers{db}, chatProvider, zerolog.Nop())

	user, err := svc.Complete(context.Background(), "alice", completeProfile())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	stored, _ := db.user("alice")
	if stored.ChatSyncedAt == nil || !stored.ChatSyncedAt.Equal(user.UpdatedAt) {
		t.Fatalf("expected synced at onboarding version %v got %v", user.UpdatedAt, stored.ChatSyncedAt)
	}
	pending, _ := memUsers{db}.ListPendingChatSync(context.Background(), 10)
	if len(pending) != 1 || pending[0].ProfilePic != "new.png" {
		t.Fatalf("expected alice queued for resync with new avatar, got %+v", pending)
	}
}
