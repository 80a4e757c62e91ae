// Package push fans out Web Push notifications for chat and blog events.
package push

import (
	"context"

	"github.com/bissquit/pushrelay/internal/domain"
)

// Repository defines data access for the subscriber registry and channel lookups.
type Repository interface {
	ChannelDirectory

	// Subscriptions
	ListEnabledSubscriptions(ctx context.Context, audience Audience) ([]domain.Subscription, error)
	DisableSubscriptions(ctx context.Context, endpoints []string) (int64, error)
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// ChannelDirectory provides read-only channel membership and ownership.
type ChannelDirectory interface {
	ListChannelMembers(ctx context.Context, channelID string) ([]string, error)
	// GetChannelOwner returns ErrChannelNotFound when the channel has no owner row.
	GetChannelOwner(ctx context.Context, channelID string) (string, error)
}
