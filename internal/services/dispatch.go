// Package services holds the orchestration layer between the HTTP handlers
// and the provider/persistence packages.
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"omnigate/internal/channel"
	"omnigate/internal/identity"
	"omnigate/internal/media"
	"omnigate/pkg/models"
)

// summaryLimit bounds the denormalized conversation preview text.
const summaryLimit = 255

// ConversationStore is the conversation persistence the dispatcher needs.
type ConversationStore interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	UpdateSummary(ctx context.Context, id uuid.UUID, text string, at time.Time) (int64, error)
}

// MessageStore is the message persistence the dispatcher needs.
type MessageStore interface {
	Create(ctx context.Context, message *models.Message) error
}

// EventPublisher pushes realtime events to connected clients. Publishing is
// fire-and-forget: a slow or absent subscriber never blocks a send.
type EventPublisher interface {
	PublishMessage(userID uuid.UUID, message *models.Message)
	PublishConversation(userID uuid.UUID, conv *models.Conversation)
}

// OutboundPayload is one message to be dispatched. Text-only payloads leave
// File nil; media payloads carry the upload stream plus its client metadata,
// which is validated against the sniffed content before anything is sent.
type OutboundPayload struct {
	Type     models.MessageType
	Text     string
	Caption  string
	File     io.ReadSeeker
	FileName string
	FileSize int64
}

// Dispatcher runs the outbound pipeline: channel detection, identifier
// resolution, media staging, provider send and persistence, in that order.
// Nothing is written to the database until the provider has accepted the
// message, so a provider failure leaves no partial state behind.
type Dispatcher struct {
	registry      *channel.Registry
	resolver      *identity.Resolver
	pipeline      *media.Pipeline
	conversations ConversationStore
	messages      MessageStore
	events        EventPublisher
}

// NewDispatcher creates the outbound dispatcher.
func NewDispatcher(
	registry *channel.Registry,
	resolver *identity.Resolver,
	pipeline *media.Pipeline,
	conversations ConversationStore,
	messages MessageStore,
	events EventPublisher,
) *Dispatcher {
	return &Dispatcher{
		registry:      registry,
		resolver:      resolver,
		pipeline:      pipeline,
		conversations: conversations,
		messages:      messages,
		events:        events,
	}
}

// Send dispatches one outbound message for a conversation and records it.
//
// Failure semantics: any error before the provider call leaves the database
// untouched. A provider error also persists nothing; the message simply never
// existed. A persistence error after the provider accepted the message is
// returned as a PersistenceError so the caller knows the message REACHED the
// recipient but was not recorded.
func (d *Dispatcher) Send(ctx context.Context, conversationID uuid.UUID, senderID uuid.UUID, payload OutboundPayload) (*models.Message, error) {
	conv, err := d.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	channelType, err := channel.TypeOf(conv.ChannelType)
	if err != nil {
		return nil, err
	}

	provider, err := d.registry.Provider(channelType)
	if err != nil {
		return nil, err
	}

	canonical, err := d.resolver.Normalize(conv.Identifier)
	if err != nil {
		return nil, err
	}
	dest, err := d.resolver.ToProviderFormat(ctx, canonical, provider.Capabilities())
	if err != nil {
		return nil, err
	}

	var staged *media.StagedMedia
	if payload.Type != models.MessageText {
		if payload.File == nil {
			return nil, &models.ValidationError{Field: "file", Reason: "media message without a file"}
		}
		mimeType, err := d.pipeline.Validate(payload.File, payload.FileSize, payload.FileName, payload.Type)
		if err != nil {
			return nil, err
		}
		staged, err = d.pipeline.Store(payload.File, senderID.String(), payload.FileName, mimeType, payload.Type)
		if err != nil {
			return nil, err
		}
	}

	var result *channel.SendResult
	if staged != nil {
		result, err = provider.SendMedia(ctx, dest, staged, payload.Caption)
	} else {
		if payload.Text == "" {
			return nil, &models.ValidationError{Field: "text", Reason: "text message without a body"}
		}
		result, err = provider.SendText(ctx, dest, payload.Text)
	}
	if err != nil {
		log.Error().Err(err).
			Str("conversation_id", conversationID.String()).
			Str("channel", string(channelType)).
			Msg("Provider rejected outbound message")
		return nil, err
	}

	message := &models.Message{
		BaseModel:      models.BaseModel{ID: uuid.New()},
		ConversationID: conversationID,
		UserID:         &senderID,
		ExternalID:     result.ExternalID,
		FromMe:         true,
		Type:           payload.Type,
		Text:           payload.Text,
		Caption:        payload.Caption,
		Status:         models.StatusSent,
	}
	if staged != nil {
		message.MediaURL = staged.PublicURL
		message.MediaPath = staged.Path
		message.MimeType = staged.MimeType
		message.Filename = staged.OriginalName
		message.FileSize = staged.Size
	}

	if err := d.messages.Create(ctx, message); err != nil {
		return nil, &models.PersistenceError{
			ConversationID: conversationID,
			ExternalID:     result.ExternalID,
			Err:            err,
		}
	}

	now := time.Now()
	summary := summaryText(payload)
	if rows, err := d.conversations.UpdateSummary(ctx, conversationID, summary, now); err != nil {
		return message, &models.PersistenceError{
			ConversationID: conversationID,
			ExternalID:     result.ExternalID,
			Err:            fmt.Errorf("message recorded but conversation summary failed: %w", err),
		}
	} else if rows == 0 {
		log.Warn().
			Str("conversation_id", conversationID.String()).
			Msg("Conversation disappeared before summary update")
	}

	if d.events != nil {
		d.events.PublishMessage(conv.UserID, message)
		conv.LastMessageText = summary
		conv.LastMessageAt = &now
		d.events.PublishConversation(conv.UserID, conv)
	}

	log.Info().
		Str("conversation_id", conversationID.String()).
		Str("channel", string(channelType)).
		Str("external_id", result.ExternalID).
		Str("type", string(payload.Type)).
		Msg("Outbound message dispatched")

	return message, nil
}

// summaryText derives the conversation preview from a payload. Media without
// a caption is previewed by its type name in brackets.
func summaryText(payload OutboundPayload) string {
	text := payload.Text
	if payload.Type != models.MessageText {
		text = payload.Caption
		if text == "" {
			text = fmt.Sprintf("[%s]", payload.Type)
		}
	}
	if runes := []rune(text); len(runes) > summaryLimit {
		text = string(runes[:summaryLimit])
	}
	return text
}
