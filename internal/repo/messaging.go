package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"omnigate/pkg/models"
)

// ConversationRepository handles conversation data access
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetConversation gets a conversation by ID
func (r *ConversationRepository) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Create creates a new conversation
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// ListByUser lists a user's conversations, pinned first, most recent
// activity first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) (models.PaginationResult[models.Conversation], error) {
	var conversations []models.Conversation
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Conversation{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return models.PaginationResult[models.Conversation]{}, err
	}

	err := q.Order("is_pinned DESC, last_message_at DESC NULLS LAST").
		Limit(limit).Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return models.PaginationResult[models.Conversation]{}, err
	}

	page := 1
	totalPages := 1
	if limit > 0 {
		page = (offset / limit) + 1
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}

	return models.PaginationResult[models.Conversation]{
		Data:       conversations,
		Total:      total,
		Page:       page,
		PerPage:    limit,
		TotalPages: totalPages,
	}, nil
}

// UpdateSummary writes the denormalized last-message snapshot. The summary
// text must already be truncated by the caller. Returns the number of rows
// touched; zero means the conversation vanished, which callers log rather
// than fail on.
func (r *ConversationRepository) UpdateSummary(ctx context.Context, id uuid.UUID, text string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_text": text,
			"last_message_at":   at,
		})
	return result.RowsAffected, result.Error
}

// IncrementUnread bumps the unread counter for an inbound message.
func (r *ConversationRepository) IncrementUnread(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

// ResetUnread clears the unread counter when an operator opens the thread.
func (r *ConversationRepository) ResetUnread(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("unread_count", 0).Error
}

// SetArchived flips the archived flag.
func (r *ConversationRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	return r.updateField(ctx, id, "is_archived", archived)
}

// SetPinned flips the pinned flag.
func (r *ConversationRepository) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error {
	return r.updateField(ctx, id, "is_pinned", pinned)
}

// SetStatus moves the conversation workflow state.
func (r *ConversationRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.ConversationStatus) error {
	return r.updateField(ctx, id, "status", status)
}

// Assign sets the owning agent.
func (r *ConversationRepository) Assign(ctx context.Context, id uuid.UUID, agentID *uuid.UUID) error {
	return r.updateField(ctx, id, "assigned_agent_id", agentID)
}

func (r *ConversationRepository) updateField(ctx context.Context, id uuid.UUID, field string, value interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update(field, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrConversationNotFound
	}
	return nil
}

// Delete removes a conversation after an ownership check.
func (r *ConversationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Conversation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrConversationNotFound
	}
	return nil
}

// MessageRepository handles message data access
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create creates a new message
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID gets a message by ID
func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByConversation lists messages most-recent-first: timestamp descending
// with the message id as tie-break, so ordering stays well-defined under
// concurrent writers.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	return messages, err
}

// UpdateStatus applies one provider-driven status transition. Illegal
// transitions (regressing from read, leaving failed) are rejected.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.MessageStatus) error {
	var message models.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		return err
	}

	if !models.CanTransition(message.Status, status) {
		return &models.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot transition from %s to %s", message.Status, status),
		}
	}

	updates := map[string]interface{}{"status": status}
	now := time.Now()
	switch status {
	case models.StatusDelivered:
		updates["delivered_at"] = now
	case models.StatusRead:
		updates["read_at"] = now
	}
	return r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes one message after an ownership check through its
// conversation.
func (r *MessageRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND conversation_id IN (?)",
			id,
			r.db.Model(&models.Conversation{}).Select("id").Where("user_id = ?", userID),
		).
		Delete(&models.Message{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LIDRepository handles LID to phone mapping data access
type LIDRepository struct {
	db *gorm.DB
}

// NewLIDRepository creates a new LID mapping repository
func NewLIDRepository(db *gorm.DB) *LIDRepository {
	return &LIDRepository{db: db}
}

// PhoneForLID resolves a LID to a phone number. Returns "" when no mapping
// exists; the resolver turns that into an UnresolvableIdentifierError.
func (r *LIDRepository) PhoneForLID(ctx context.Context, lid string) (string, error) {
	var mapping models.LIDMapping
	err := r.db.WithContext(ctx).Where("lid = ?", lid).First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return mapping.Phone, nil
}

// Upsert stores a LID to phone mapping learned from inbound webhook
// processing.
func (r *LIDRepository) Upsert(ctx context.Context, lid, phone string) error {
	var existing models.LIDMapping
	err := r.db.WithContext(ctx).Where("lid = ?", lid).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		mapping := models.LIDMapping{
			BaseModel: models.BaseModel{ID: uuid.New()},
			LID:       lid,
			Phone:     phone,
		}
		return r.db.WithContext(ctx).Create(&mapping).Error
	}
	if err != nil {
		return err
	}
	existing.Phone = phone
	return r.db.WithContext(ctx).Save(&existing).Error
}
