package push

import (
	"context"
	"errors"
	"testing"

	"github.com/bissquit/pushrelay/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		event     *domain.Event
		members   []string
		owner     string
		memberErr error
		ownerErr  error
		expected  Audience
	}{
		{
			name:     "no channel broadcasts without sender",
			event:    &domain.Event{Kind: domain.EventKindBlog, SenderIdentity: ptr("alice")},
			expected: Audience{Broadcast: true, Exclude: "alice"},
		},
		{
			name:     "no channel and no sender",
			event:    &domain.Event{Kind: domain.EventKindBlog},
			expected: Audience{Broadcast: true},
		},
		{
			name:     "empty channel id is treated as no channel",
			event:    &domain.Event{Kind: domain.EventKindChat, ChannelID: ptr("")},
			members:  []string{"bob"},
			expected: Audience{Broadcast: true},
		},
		{
			name:     "members and owner without sender",
			event:    &domain.Event{Kind: domain.EventKindChat, ChannelID: ptr("c1"), SenderIdentity: ptr("alice")},
			members:  []string{"carol", "alice", "bob", "carol"},
			owner:    "dave",
			expected: Audience{Recipients: []string{"bob", "carol", "dave"}, Exclude: "alice"},
		},
		{
			name:     "owner already a member",
			event:    &domain.Event{Kind: domain.EventKindChat, ChannelID: ptr("c1")},
			members:  []string{"bob"},
			owner:    "bob",
			expected: Audience{Recipients: []string{"bob"}},
		},
		{
			name:     "sender is owner",
			event:    &domain.Event{Kind: domain.EventKindChat, ChannelID: ptr("c1"), SenderIdentity: ptr("bob")},
			members:  []string{"carol"},
			owner:    "bob",
			expected: Audience{Recipients: []string{"carol"}, Exclude: "bob"},
		},
		{
			name:      "member lookup failure keeps owner",
			event:     &domain.Event{Kind: domain.EventKindChat, ChannelID: ptr("c1")},
			owner:     "dave",
			memberErr: errors.New("connection reset"),
			expected:  Audience{Recipients: []string{"dave"}},
		},
		{
			name:     "owner lookup failure keeps members",
			event:    &domain.Event{Kind: domain.EventKindChat, ChannelID: ptr("c1")},
			members:  []string{"bob"},
			ownerErr: errors.New("connection reset"),
			expected: Audience{Recipients: []string{"bob"}},
		},
		{
			name:      "both lookups fail targets nobody",
			event:     &domain.Event{Kind: domain.EventKindChat, ChannelID: ptr("c1")},
			memberErr: errors.New("timeout"),
			ownerErr:  errors.New("timeout"),
			expected:  Audience{Recipients: []string{}},
		},
		{
			name:     "empty member names are dropped",
			event:    &domain.Event{Kind: domain.EventKindChat, ChannelID: ptr("c1")},
			members:  []string{"", "bob"},
			expected: Audience{Recipients: []string{"bob"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepository()
			repo.members["c1"] = tt.members
			if tt.owner != "" {
				repo.owners["c1"] = tt.owner
			}
			repo.membersErr = tt.memberErr
			repo.ownerErr = tt.ownerErr

			audience := NewResolver(repo).Resolve(context.Background(), tt.event)

			assert.Equal(t, tt.expected.Broadcast, audience.Broadcast)
			assert.Equal(t, tt.expected.Exclude, audience.Exclude)
			assert.ElementsMatch(t, tt.expected.Recipients, audience.Recipients)
			assert.NotContains(t, audience.Recipients, tt.event.Sender())
		})
	}
}

func TestResolver_EmptyChannelTargetsNobody(t *testing.T) {
	repo := newFakeRepository()
	event := &domain.Event{Kind: domain.EventKindChat, ChannelID: ptr("ghost"), SenderIdentity: ptr("alice")}

	audience := NewResolver(repo).Resolve(context.Background(), event)

	assert.False(t, audience.Broadcast)
	assert.True(t, audience.IsEmpty())
}

func TestAudience_IsEmpty(t *testing.T) {
	assert.True(t, Audience{}.IsEmpty())
	assert.False(t, Audience{Broadcast: true}.IsEmpty())
	assert.False(t, Audience{Recipients: []string{"bob"}}.IsEmpty())
}
