package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkify/api/internal/database"
	"talkify/api/internal/models"
)

var (
	ErrFriendRequestNotFound   = errors.New("friend request not found")
	ErrDuplicateFriendRequest  = errors.New("friend request already exists")
	ErrFriendRequestNotPending = errors.New("friend request is not pending")
)

const friendRequestColumns = `id, sender_id, recipient_id, status, created_at, updated_at`

type FriendRequestRepository struct {
	pool *pgxpool.Pool
}

func NewFriendRequestRepository(pool *pgxpool.Pool) *FriendRequestRepository {
	return &FriendRequestRepository{pool: pool}
}

func (r *FriendRequestRepository) db(ctx context.Context) database.Querier {
	return database.Conn(ctx, r.pool)
}

func (r *FriendRequestRepository) Create(ctx context.Context, req models.FriendRequest) error {
	const query = `
		INSERT INTO friend_requests (id, sender_id, recipient_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	_, err := r.db(ctx).Exec(ctx, query, req.ID, req.SenderID, req.RecipientID, req.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateFriendRequest
		}
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

// GetByIDForUpdate locks the row until the surrounding transaction ends.
func (r *FriendRequestRepository) GetByIDForUpdate(ctx context.Context, id string) (models.FriendRequest, error) {
	query := `SELECT ` + friendRequestColumns + ` FROM friend_requests WHERE id = $1 FOR UPDATE`
	return scanFriendRequest(r.db(ctx).QueryRow(ctx, query, id))
}

// FindBetween finds a request between two users in either direction,
// whatever its status.
func (r *FriendRequestRepository) FindBetween(ctx context.Context, userA, userB string) (models.FriendRequest, error) {
	query := `
		SELECT ` + friendRequestColumns + `
		FROM friend_requests
		WHERE (sender_id = $1 AND recipient_id = $2)
			OR (sender_id = $2 AND recipient_id = $1)
		LIMIT 1
	`
	return scanFriendRequest(r.db(ctx).QueryRow(ctx, query, userA, userB))
}

// MarkAccepted moves a pending request to accepted. A request in any other
// state is left untouched.
func (r *FriendRequestRepository) MarkAccepted(ctx context.Context, id string) error {
	const query = `
		UPDATE friend_requests SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	cmd, err := r.db(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("accept friend request: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrFriendRequestNotPending
	}
	return nil
}

// ListForRecipient returns requests addressed to userID with the sender's
// profile expanded.
func (r *FriendRequestRepository) ListForRecipient(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequestView, error) {
	const query = `
		SELECT fr.id, fr.sender_id, fr.recipient_id, fr.status, fr.created_at, fr.updated_at,
			u.id, u.full_name, u.profile_pic, u.native_language, u.learning_language
		FROM friend_requests fr
		JOIN users u ON u.id = fr.sender_id
		WHERE fr.recipient_id = $1 AND fr.status = $2
		ORDER BY fr.created_at DESC
	`
	return r.listViews(ctx, query, userID, status)
}

// ListForSender returns requests sent by userID with the recipient's
// profile expanded.
func (r *FriendRequestRepository) ListForSender(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequestView, error) {
	const query = `
		SELECT fr.id, fr.sender_id, fr.recipient_id, fr.status, fr.created_at, fr.updated_at,
			u.id, u.full_name, u.profile_pic, u.native_language, u.learning_language
		FROM friend_requests fr
		JOIN users u ON u.id = fr.recipient_id
		WHERE fr.sender_id = $1 AND fr.status = $2
		ORDER BY fr.created_at DESC
	`
	return r.listViews(ctx, query, userID, status)
}

func (r *FriendRequestRepository) listViews(ctx context.Context, query string, userID string, status models.FriendRequestStatus) ([]models.FriendRequestView, error) {
	rows, err := r.db(ctx).Query(ctx, query, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	views := make([]models.FriendRequestView, 0)
	for rows.Next() {
		var v models.FriendRequestView
		if err := rows.Scan(
			&v.ID,
			&v.SenderID,
			&v.RecipientID,
			&v.Status,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.Counterpart.ID,
			&v.Counterpart.FullName,
			&v.Counterpart.ProfilePic,
			&v.Counterpart.NativeLanguage,
			&v.Counterpart.LearningLanguage,
		); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func scanFriendRequest(row pgx.Row) (models.FriendRequest, error) {
	var req models.FriendRequest
	if err := row.Scan(
		&req.ID,
		&req.SenderID,
		&req.RecipientID,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FriendRequest{}, ErrFriendRequestNotFound
		}
		return models.FriendRequest{}, fmt.Errorf("scan friend request: %w", err)
	}
	return req, nil
}
