package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"omnigate/internal/channel"
	"omnigate/internal/repo"
	"omnigate/internal/services"
	"omnigate/pkg/models"
)

// MessageHandler handles message dispatch and conversation browsing.
type MessageHandler struct {
	dispatcher    *services.Dispatcher
	conversations *repo.ConversationRepository
	messages      *repo.MessageRepository
}

type sendMessageRequest struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(dispatcher *services.Dispatcher, conversations *repo.ConversationRepository, messages *repo.MessageRepository) *MessageHandler {
	return &MessageHandler{
		dispatcher:    dispatcher,
		conversations: conversations,
		messages:      messages,
	}
}

// Send dispatches one outbound message. Text messages arrive as JSON or form
// fields; media messages arrive as multipart with the upload under "file".
func (h *MessageHandler) Send(c echo.Context) error {
	senderID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "user_id not found in context"})
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation ID"})
	}

	var payload services.OutboundPayload
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var req sendMessageRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}
		payload = services.OutboundPayload{
			Type: models.MessageType(req.Type),
			Text: req.Text,
		}
	} else {
		payload = services.OutboundPayload{
			Type:    models.MessageType(c.FormValue("type")),
			Text:    c.FormValue("text"),
			Caption: c.FormValue("caption"),
		}
	}
	if payload.Type == "" {
		payload.Type = models.MessageText
	}

	if payload.Type != models.MessageText {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Media message requires a file"})
		}
		file, err := fileHeader.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read uploaded file"})
		}
		defer file.Close()

		payload.File = file
		payload.FileName = fileHeader.Filename
		payload.FileSize = fileHeader.Size
	}

	message, err := h.dispatcher.Send(c.Request().Context(), conversationID, senderID, payload)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, message)
}

type createConversationRequest struct {
	ChannelType string `json:"channel_type" validate:"required"`
	Identifier  string `json:"identifier" validate:"required"`
	DisplayName string `json:"display_name"`
}

// CreateConversation opens a conversation with a contact on one channel.
func (h *MessageHandler) CreateConversation(c echo.Context) error {
	callerID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "user_id not found in context"})
	}

	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	channelType, err := channel.TypeOf(models.ChannelType(req.ChannelType))
	if err != nil {
		return errorResponse(c, err)
	}

	conv := &models.Conversation{
		UserID:      callerID,
		ChannelType: channelType,
		Identifier:  req.Identifier,
		DisplayName: req.DisplayName,
		Status:      models.ConversationOpen,
	}
	if err := h.conversations.Create(c.Request().Context(), conv); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, conv)
}

// ListConversations returns the caller's conversations with pagination.
func (h *MessageHandler) ListConversations(c echo.Context) error {
	callerID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "user_id not found in context"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = 20
	}

	result, err := h.conversations.ListByUser(c.Request().Context(), callerID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// ListMessages returns a conversation's messages, most recent first.
func (h *MessageHandler) ListMessages(c echo.Context) error {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation ID"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = 50
	}

	if _, err := h.conversations.GetConversation(c.Request().Context(), conversationID); err != nil {
		return errorResponse(c, err)
	}

	messages, err := h.messages.ListByConversation(c.Request().Context(), conversationID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, messages)
}

type conversationActionRequest struct {
	Archived *bool      `json:"archived"`
	Pinned   *bool      `json:"pinned"`
	Status   *string    `json:"status"`
	AgentID  *uuid.UUID `json:"agent_id"`
}

// UpdateConversation applies workflow actions: archive, pin, status change
// and agent assignment. Absent fields are left untouched.
func (h *MessageHandler) UpdateConversation(c echo.Context) error {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation ID"})
	}

	var req conversationActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	ctx := c.Request().Context()
	if req.Archived != nil {
		if err := h.conversations.SetArchived(ctx, conversationID, *req.Archived); err != nil {
			return errorResponse(c, err)
		}
	}
	if req.Pinned != nil {
		if err := h.conversations.SetPinned(ctx, conversationID, *req.Pinned); err != nil {
			return errorResponse(c, err)
		}
	}
	if req.Status != nil {
		status := models.ConversationStatus(*req.Status)
		switch status {
		case models.ConversationOpen, models.ConversationInProgress, models.ConversationClosed:
		default:
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation status"})
		}
		if err := h.conversations.SetStatus(ctx, conversationID, status); err != nil {
			return errorResponse(c, err)
		}
	}
	if req.AgentID != nil {
		if err := h.conversations.Assign(ctx, conversationID, req.AgentID); err != nil {
			return errorResponse(c, err)
		}
	}

	conv, err := h.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

type updateMessageStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending sent delivered read failed"`
}

// UpdateMessageStatus applies one status transition to a message, typically
// relayed from a provider delivery receipt. Illegal transitions are rejected.
func (h *MessageHandler) UpdateMessageStatus(c echo.Context) error {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation ID"})
	}
	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid message ID"})
	}

	var req updateMessageStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ctx := c.Request().Context()
	message, err := h.messages.GetByID(ctx, messageID)
	if err != nil || message.ConversationID != conversationID {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Message not found"})
	}

	if err := h.messages.UpdateStatus(ctx, messageID, models.MessageStatus(req.Status)); err != nil {
		return errorResponse(c, err)
	}

	message, err = h.messages.GetByID(ctx, messageID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, message)
}

// DeleteMessage removes one of the caller's messages.
func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	callerID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "user_id not found in context"})
	}
	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid message ID"})
	}

	if err := h.messages.Delete(c.Request().Context(), messageID, callerID); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Message not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteConversation removes one of the caller's conversations.
func (h *MessageHandler) DeleteConversation(c echo.Context) error {
	callerID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "user_id not found in context"})
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation ID"})
	}

	if err := h.conversations.Delete(c.Request().Context(), conversationID, callerID); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkRead clears a conversation's unread counter.
func (h *MessageHandler) MarkRead(c echo.Context) error {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid conversation ID"})
	}
	if err := h.conversations.ResetUnread(c.Request().Context(), conversationID); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
