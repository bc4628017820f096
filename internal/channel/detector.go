package channel

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"omnigate/pkg/models"
)

// ConversationGetter looks up one conversation. Returns
// models.ErrConversationNotFound when the id does not resolve.
type ConversationGetter interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
}

// Detector inspects a conversation record to determine which provider must
// handle it.
type Detector struct {
	conversations ConversationGetter
}

// NewDetector creates a channel detector over the conversation store.
func NewDetector(conversations ConversationGetter) *Detector {
	return &Detector{conversations: conversations}
}

// Detect returns the channel type of a conversation. An empty stored value
// defaults to whatsapp: a compatibility shim for conversations created
// before the gateway went multi-channel. New conversations always carry an
// explicit channel type. Any value outside the known enum is an
// UnsupportedChannelError.
func (d *Detector) Detect(ctx context.Context, conversationID uuid.UUID) (models.ChannelType, error) {
	conv, err := d.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return "", err
	}

	return TypeOf(conv.ChannelType)
}

// TypeOf normalizes a stored channel value. An empty value defaults to
// whatsapp; anything outside the known enum is an UnsupportedChannelError.
func TypeOf(stored models.ChannelType) (models.ChannelType, error) {
	raw := strings.ToLower(strings.TrimSpace(string(stored)))
	if raw == "" {
		return models.ChannelWhatsApp, nil
	}

	ct := models.ChannelType(raw)
	if !models.KnownChannelTypes[ct] {
		return "", &models.UnsupportedChannelError{Value: raw}
	}
	return ct, nil
}
