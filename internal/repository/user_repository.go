package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkify/api/internal/database"
	"talkify/api/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const uniqueViolation = "23505"

const userColumns = `
	id, email, password_hash, full_name, profile_pic, bio, native_language,
	learning_language, location, is_onboarded, friends, refresh_token,
	chat_synced_at, created_at, updated_at`

const profileColumns = `id, full_name, profile_pic, native_language, learning_language`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) db(ctx context.Context) database.Querier {
	return database.Conn(ctx, r.pool)
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, full_name, profile_pic, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		)
	`

	_, err := r.db(ctx).Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.ProfilePic,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db(ctx).QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db(ctx).QueryRow(ctx, query, id))
}

// SetRefreshToken replaces the stored refresh token. Only that column is
// written; a nil token clears it.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	const query = `UPDATE users SET refresh_token = $2 WHERE id = $1`
	cmd, err := r.db(ctx).Exec(ctx, query, id, token)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CompleteOnboarding writes every profile field and the onboarded flag in a
// single statement.
func (r *UserRepository) CompleteOnboarding(ctx context.Context, id string, profile models.OnboardingProfile) (models.User, error) {
	query := `
		UPDATE users SET
			full_name = $2,
			bio = $3,
			native_language = $4,
			learning_language = $5,
			location = $6,
			is_onboarded = TRUE,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(r.db(ctx).QueryRow(ctx, query,
		id,
		profile.FullName,
		profile.Bio,
		profile.NativeLanguage,
		profile.LearningLanguage,
		profile.Location,
	))
}

func (r *UserRepository) UpdateProfilePic(ctx context.Context, id string, url string) (models.User, error) {
	query := `
		UPDATE users SET profile_pic = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(r.db(ctx).QueryRow(ctx, query, id, url))
}

// AddFriend adds friendID to id's friends set. Adding an existing friend is
// a no-op. updated_at is left alone since the chat profile does not change.
func (r *UserRepository) AddFriend(ctx context.Context, id string, friendID string) error {
	const query = `
		UPDATE users SET friends = array_append(friends, $2::TEXT)
		WHERE id = $1 AND NOT ($2::TEXT = ANY(friends))
	`
	cmd, err := r.db(ctx).Exec(ctx, query, id, friendID)
	if err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

// ListRecommendations returns onboarded users other than id who are not
// already in id's friends set.
func (r *UserRepository) ListRecommendations(ctx context.Context, id string) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id <> $1
			AND is_onboarded = TRUE
			AND id NOT IN (SELECT unnest(friends) FROM users WHERE id = $1)
		ORDER BY created_at DESC
	`
	rows, err := r.db(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) ListFriends(ctx context.Context, id string) ([]models.PublicProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM users
		WHERE id IN (SELECT unnest(friends) FROM users WHERE id = $1)
		ORDER BY full_name
	`
	rows, err := r.db(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	friends := make([]models.PublicProfile, 0)
	for rows.Next() {
		var p models.PublicProfile
		if err := rows.Scan(&p.ID, &p.FullName, &p.ProfilePic, &p.NativeLanguage, &p.LearningLanguage); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, p)
	}
	return friends, rows.Err()
}

// ListPendingChatSync returns onboarded users whose chat identity is missing
// or older than their last profile change.
func (r *UserRepository) ListPendingChatSync(ctx context.Context, limit int) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_onboarded = TRUE
			AND (chat_synced_at IS NULL OR chat_synced_at < updated_at)
		ORDER BY updated_at
		LIMIT $1
	`
	rows, err := r.db(ctx).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending chat sync: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// MarkChatSynced records that the profile as of version (its updated_at) has
// reached the chat provider. A later profile change keeps the user pending.
func (r *UserRepository) MarkChatSynced(ctx context.Context, id string, version time.Time) error {
	const query = `UPDATE users SET chat_synced_at = $2 WHERE id = $1`
	cmd, err := r.db(ctx).Exec(ctx, query, id, version)
	if err != nil {
		return fmt.Errorf("mark chat synced: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.ProfilePic,
		&user.Bio,
		&user.NativeLanguage,
		&user.LearningLanguage,
		&user.Location,
		&user.IsOnboarded,
		&user.Friends,
		&user.RefreshToken,
		&user.ChatSyncedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}
