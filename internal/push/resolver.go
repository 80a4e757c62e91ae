package push

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/bissquit/pushrelay/internal/domain"
	"github.com/bissquit/pushrelay/internal/pkg/ctxlog"
)

// Audience is the set of recipients an event targets.
type Audience struct {
	// Broadcast targets every enabled subscription.
	Broadcast bool
	// Recipients is deduplicated and sorted. Ignored when Broadcast is set.
	Recipients []string
	// Exclude is never targeted, even when Broadcast is set.
	Exclude string
}

// IsEmpty reports whether the audience can match no subscription.
func (a Audience) IsEmpty() bool {
	return !a.Broadcast && len(a.Recipients) == 0
}

// Resolver computes the audience of an event.
type Resolver struct {
	directory ChannelDirectory
}

// NewResolver creates a new Resolver.
func NewResolver(directory ChannelDirectory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve returns the recipients of an event. Channel lookups are best-effort:
// a failed lookup is logged and the audience is built from whatever succeeded.
func (r *Resolver) Resolve(ctx context.Context, event *domain.Event) Audience {
	sender := event.Sender()

	if !event.IsChannelScoped() {
		return Audience{Broadcast: true, Exclude: sender}
	}

	channelID := *event.ChannelID
	logger := ctxlog.FromContext(ctx)
	recipients := make(map[string]struct{})

	members, err := r.directory.ListChannelMembers(ctx, channelID)
	if err != nil {
		logger.Warn("failed to list channel members, continuing without them",
			"channel_id", channelID,
			"error", err,
		)
		recordLookupFailure("members")
	}
	for _, m := range members {
		recipients[m] = struct{}{}
	}

	owner, err := r.directory.GetChannelOwner(ctx, channelID)
	switch {
	case errors.Is(err, ErrChannelNotFound):
		logger.Debug("channel has no owner", "channel_id", channelID)
	case err != nil:
		logger.Warn("failed to get channel owner, continuing without it",
			"channel_id", channelID,
			"error", err,
		)
		recordLookupFailure("owner")
	default:
		recipients[owner] = struct{}{}
	}

	delete(recipients, "")
	delete(recipients, sender)

	return Audience{
		Recipients: slices.Sorted(maps.Keys(recipients)),
		Exclude:    sender,
	}
}
