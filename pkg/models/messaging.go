package models

import (
	"time"

	"github.com/google/uuid"
)

// ChannelType identifies one external messaging network.
type ChannelType string

const (
	ChannelWhatsApp  ChannelType = "whatsapp"
	ChannelInstagram ChannelType = "instagram"
	ChannelFacebook  ChannelType = "facebook"
	ChannelTelegram  ChannelType = "telegram"
	ChannelTeams     ChannelType = "teams"
)

// KnownChannelTypes is the closed set of supported channel types.
var KnownChannelTypes = map[ChannelType]bool{
	ChannelWhatsApp:  true,
	ChannelInstagram: true,
	ChannelFacebook:  true,
	ChannelTelegram:  true,
	ChannelTeams:     true,
}

// ConversationStatus is the workflow state of a conversation.
type ConversationStatus string

const (
	ConversationOpen       ConversationStatus = "open"
	ConversationInProgress ConversationStatus = "in_progress"
	ConversationClosed     ConversationStatus = "closed"
)

// Conversation represents one ongoing thread with one counterparty on one
// channel. ChannelType is set at creation and never changes afterwards.
type Conversation struct {
	BaseModel
	UserID          uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	ChannelType     ChannelType        `gorm:"size:32;index" json:"channel_type"`
	Identifier      string             `gorm:"size:128;not null;index" json:"identifier"` // canonical counterparty id
	DisplayName     string             `gorm:"size:255" json:"display_name"`
	LastMessageText string             `gorm:"size:255" json:"last_message_text"`
	LastMessageAt   *time.Time         `json:"last_message_at"`
	UnreadCount     int                `gorm:"default:0" json:"unread_count"`
	IsArchived      bool               `gorm:"default:false" json:"is_archived"`
	IsPinned        bool               `gorm:"default:false" json:"is_pinned"`
	Status          ConversationStatus `gorm:"size:32;default:'open'" json:"status"`
	AssignedAgentID *uuid.UUID         `gorm:"type:uuid" json:"assigned_agent_id"`
}

// MessageType is the content kind of a message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
	MessageVideo    MessageType = "video"
	MessageSticker  MessageType = "sticker"
)

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// messageTransitions encodes pending -> sent -> {delivered -> read} | failed.
// read and failed are terminal; no transition regresses.
var messageTransitions = map[MessageStatus][]MessageStatus{
	StatusPending:   {StatusSent, StatusFailed},
	StatusSent:      {StatusDelivered, StatusRead, StatusFailed},
	StatusDelivered: {StatusRead},
}

// CanTransition reports whether a message status may move from one state to
// another. Transitions are driven only by provider confirmation events.
func CanTransition(from, to MessageStatus) bool {
	for _, next := range messageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Message represents one unit of conversation content. Text and Caption are
// distinct attributes: for media messages the caption never doubles as the
// plain-text body.
type Message struct {
	BaseModel
	ConversationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"conversation_id"`
	UserID         *uuid.UUID    `gorm:"type:uuid" json:"user_id"` // null for inbound messages
	ExternalID     string        `gorm:"index" json:"external_id"` // provider message id, empty until confirmed
	FromMe         bool          `gorm:"not null" json:"from_me"`
	Type           MessageType   `gorm:"size:32;not null;default:'text'" json:"type"`
	Text           string        `gorm:"type:text" json:"text"`
	Caption        string        `gorm:"type:text" json:"caption"`
	MediaURL       string        `json:"media_url,omitempty"`
	MediaPath      string        `json:"media_path,omitempty"`
	MimeType       string        `gorm:"size:128" json:"mime_type,omitempty"`
	Filename       string        `gorm:"size:255" json:"filename,omitempty"`
	FileSize       int64         `json:"file_size,omitempty"`
	Status         MessageStatus `gorm:"size:32;default:'pending'" json:"status"`
	DeliveredAt    *time.Time    `json:"delivered_at"`
	ReadAt         *time.Time    `json:"read_at"`
}

// CredentialScope says whether a credential set belongs to one user or to
// the whole deployment.
type CredentialScope string

const (
	ScopeUser   CredentialScope = "user"
	ScopeGlobal CredentialScope = "global"
)

// ChannelCredential holds the provider configuration for one channel.
// Credential holds an opaque JSON blob whose fields vary by channel
// (bot token, page id + access token, instance/API-key pair).
type ChannelCredential struct {
	BaseModel
	ChannelType     ChannelType     `gorm:"size:32;not null;uniqueIndex:idx_credentials_scope_channel" json:"channel_type"`
	Scope           CredentialScope `gorm:"size:16;not null;default:'user';uniqueIndex:idx_credentials_scope_channel" json:"scope"`
	OwnerID         *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_credentials_scope_channel" json:"owner_id"` // null for global scope
	Credential      string          `gorm:"type:text;not null" json:"-"`
	WebhookVerified bool            `gorm:"default:false" json:"webhook_verified"`
	IsActive        bool            `gorm:"default:true" json:"is_active"`
}

// LIDMapping maps an opaque provider-assigned LID to a phone number.
// Rows are maintained by inbound webhook processing.
type LIDMapping struct {
	BaseModel
	LID   string `gorm:"size:128;not null;uniqueIndex" json:"lid"`
	Phone string `gorm:"size:32;not null;index" json:"phone"`
}
