// Package postgres provides PostgreSQL implementation of the push repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/pushrelay/internal/domain"
	"github.com/bissquit/pushrelay/internal/push"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements push.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListEnabledSubscriptions returns enabled subscriptions matching the audience.
func (r *Repository) ListEnabledSubscriptions(ctx context.Context, audience push.Audience) ([]domain.Subscription, error) {
	query := `
		SELECT id, username, endpoint, p256dh, auth, enabled, created_at, updated_at
		FROM push_subscriptions
		WHERE enabled = TRUE
		  AND ($1::text = '' OR username <> $1::text)
		  AND ($2::boolean OR username = ANY($3::text[]))
		ORDER BY created_at, id
	`
	recipients := audience.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	rows, err := r.db.Query(ctx, query, audience.Exclude, audience.Broadcast, recipients)
	if err != nil {
		return nil, fmt.Errorf("list enabled subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.Subscription, 0)
	for rows.Next() {
		var sub domain.Subscription
		err := rows.Scan(
			&sub.ID,
			&sub.Recipient,
			&sub.Endpoint,
			&sub.PublicKey,
			&sub.AuthSecret,
			&sub.Enabled,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	return subs, nil
}

// DisableSubscriptions disables all given endpoints in one statement.
// Returns the number of rows that were enabled before the call.
func (r *Repository) DisableSubscriptions(ctx context.Context, endpoints []string) (int64, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}

	query := `
		UPDATE push_subscriptions
		SET enabled = FALSE, updated_at = NOW()
		WHERE endpoint = ANY($1::text[]) AND enabled = TRUE
	`
	result, err := r.db.Exec(ctx, query, endpoints)
	if err != nil {
		return 0, fmt.Errorf("disable subscriptions: %w", err)
	}
	return result.RowsAffected(), nil
}

// UpsertSubscription creates a subscription or rebinds an existing endpoint.
func (r *Repository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO push_subscriptions (username, endpoint, p256dh, auth, enabled)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (endpoint) DO UPDATE
		SET username = EXCLUDED.username,
		    p256dh = EXCLUDED.p256dh,
		    auth = EXCLUDED.auth,
		    enabled = TRUE,
		    updated_at = NOW()
		RETURNING id, enabled, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		sub.Recipient,
		sub.Endpoint,
		sub.PublicKey,
		sub.AuthSecret,
	).Scan(&sub.ID, &sub.Enabled, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// DeleteSubscription deletes a subscription by endpoint.
func (r *Repository) DeleteSubscription(ctx context.Context, endpoint string) error {
	query := `DELETE FROM push_subscriptions WHERE endpoint = $1`
	result, err := r.db.Exec(ctx, query, endpoint)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return push.ErrSubscriptionNotFound
	}
	return nil
}

// ListChannelMembers returns the usernames of a channel's members.
func (r *Repository) ListChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	query := `SELECT username FROM channel_members WHERE channel_id = $1 ORDER BY username`
	rows, err := r.db.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list channel members: %w", err)
	}

	members, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan channel members: %w", err)
	}
	return members, nil
}

// GetChannelOwner returns the owner of a channel.
func (r *Repository) GetChannelOwner(ctx context.Context, channelID string) (string, error) {
	query := `SELECT COALESCE(owner_id, '') FROM channels WHERE id = $1`

	var owner string
	err := r.db.QueryRow(ctx, query, channelID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", push.ErrChannelNotFound
		}
		return "", fmt.Errorf("get channel owner: %w", err)
	}

	if owner == "" {
		return "", push.ErrChannelNotFound
	}
	return owner, nil
}
