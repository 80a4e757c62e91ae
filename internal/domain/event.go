// Package domain contains the types shared by the push fan-out.
package domain

// EventKind categorizes the triggering event.
type EventKind string

// Event kinds.
const (
	EventKindChat EventKind = "chat"
	EventKindBlog EventKind = "blog"
)

// Event is a chat or blog event that triggers a push fan-out.
type Event struct {
	Kind           EventKind `json:"kind"`
	ChannelID      *string   `json:"channel_id,omitempty"`
	SenderIdentity *string   `json:"from_username,omitempty"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	TargetURL      string    `json:"url"`
}

// IsChannelScoped reports whether the event targets a single channel.
func (e *Event) IsChannelScoped() bool {
	return e.ChannelID != nil && *e.ChannelID != ""
}

// Sender returns the sender identity or an empty string.
func (e *Event) Sender() string {
	if e.SenderIdentity == nil {
		return ""
	}
	return *e.SenderIdentity
}
