package push

import (
	"encoding/json"
	"fmt"

	"github.com/bissquit/pushrelay/internal/domain"
)

// maxPayloadBytes keeps the encrypted record under the 4096 byte Web Push limit.
const maxPayloadBytes = 3800

// PayloadConfig contains defaults for fields an event may omit.
type PayloadConfig struct {
	DefaultTitle  string
	DefaultBody   string
	DefaultURL    string
	ChatTagPrefix string
	DefaultTag    string
}

// DefaultPayloadConfig returns default payload configuration.
func DefaultPayloadConfig() PayloadConfig {
	return PayloadConfig{
		DefaultTitle:  "Nanodoroshi / Anticode",
		DefaultBody:   "새 알림이 있습니다.",
		DefaultURL:    "/anticode.html",
		ChatTagPrefix: "anticode_chat_",
		DefaultTag:    "nano_push",
	}
}

// Message is the JSON document the service worker receives.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Tag   string `json:"tag"`
}

// PayloadBuilder renders events into push messages.
type PayloadBuilder struct {
	config PayloadConfig
}

// NewPayloadBuilder creates a PayloadBuilder. Empty config fields fall back to defaults.
func NewPayloadBuilder(config PayloadConfig) PayloadBuilder {
	defaults := DefaultPayloadConfig()
	if config.DefaultTitle == "" {
		config.DefaultTitle = defaults.DefaultTitle
	}
	if config.DefaultBody == "" {
		config.DefaultBody = defaults.DefaultBody
	}
	if config.DefaultURL == "" {
		config.DefaultURL = defaults.DefaultURL
	}
	if config.ChatTagPrefix == "" {
		config.ChatTagPrefix = defaults.ChatTagPrefix
	}
	if config.DefaultTag == "" {
		config.DefaultTag = defaults.DefaultTag
	}
	return PayloadBuilder{config: config}
}

// Message builds the push message for an event.
// Chat events share a tag per channel so a newer message replaces the older one.
func (b PayloadBuilder) Message(event *domain.Event) Message {
	msg := Message{
		Title: event.Title,
		Body:  event.Body,
		URL:   event.TargetURL,
		Tag:   b.config.DefaultTag,
	}
	if msg.Title == "" {
		msg.Title = b.config.DefaultTitle
	}
	if msg.Body == "" {
		msg.Body = b.config.DefaultBody
	}
	if msg.URL == "" {
		msg.URL = b.config.DefaultURL
	}

	if event.Kind == domain.EventKindChat {
		channelID := ""
		if event.ChannelID != nil {
			channelID = *event.ChannelID
		}
		msg.Tag = b.config.ChatTagPrefix + channelID
	}

	return msg
}

// Build returns the encoded push payload for an event.
func (b PayloadBuilder) Build(event *domain.Event) ([]byte, error) {
	payload, err := json.Marshal(b.Message(event))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if len(payload) > maxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), maxPayloadBytes)
	}
	return payload, nil
}
