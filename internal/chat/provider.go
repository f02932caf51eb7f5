package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	stream "github.com/GetStream/stream-chat-go/v6"

	"talkify/api/internal/config"
)

var ErrNotConfigured = errors.New("chat provider credentials are not configured")

// Profile is the identity mirrored into the chat provider.
type Profile struct {
	ID    string
	Name  string
	Image string
}

// Provider is the external real-time chat service.
type Provider interface {
	UpsertUser(ctx context.Context, profile Profile) error
	CreateToken(userID string) (string, error)
}

// StreamProvider talks to Stream Chat.
type StreamProvider struct {
	client *stream.Client
}

func NewStreamProvider(cfg config.StreamConfig) (*StreamProvider, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrNotConfigured
	}

	client, err := stream.NewClient(cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init stream client: %w", err)
	}
	return &StreamProvider{client: client}, nil
}

func (p *StreamProvider) UpsertUser(ctx context.Context, profile Profile) error {
	_, err := p.client.UpsertUser(ctx, &stream.User{
		ID:    profile.ID,
		Name:  profile.Name,
		Image: profile.Image,
	})
	if err != nil {
		return fmt.Errorf("stream upsert user %s: %w", profile.ID, err)
	}
	return nil
}

// CreateToken signs a non-expiring user token for the chat client SDK.
func (p *StreamProvider) CreateToken(userID string) (string, error) {
	token, err := p.client.CreateToken(userID, time.Time{})
	if err != nil {
		return "", fmt.Errorf("stream create token %s: %w", userID, err)
	}
	return token, nil
}

// Unconfigured stands in when Stream credentials are absent so the API can
// still boot; every call fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) UpsertUser(context.Context, Profile) error { return ErrNotConfigured }
func (Unconfigured) CreateToken(string) (string, error)       { return "", ErrNotConfigured }
