package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"omnigate/internal/services"
	"omnigate/pkg/models"
)

// ChannelHandler handles channel credential and connection-state operations.
type ChannelHandler struct {
	channels *services.ChannelService
}

// NewChannelHandler creates a new channel handler
func NewChannelHandler(channels *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

type saveCredentialsRequest struct {
	Scope      models.CredentialScope `json:"scope" validate:"omitempty,oneof=user global"`
	Credential string                 `json:"credential" validate:"required"`
}

type saveCredentialsResponse struct {
	Credential *models.ChannelCredential `json:"credential"`
	Warning    string                    `json:"warning,omitempty"`
}

// SaveCredentials validates and stores a channel's credential set.
func (h *ChannelHandler) SaveCredentials(c echo.Context) error {
	callerID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "user_id not found in context"})
	}

	var req saveCredentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Scope == "" {
		req.Scope = models.ScopeUser
	}

	channelType := models.ChannelType(c.Param("type"))
	owner := &callerID
	if req.Scope == models.ScopeGlobal {
		owner = nil
	}

	cred, webhookWarning, err := h.channels.SaveCredentials(c.Request().Context(), channelType, req.Scope, owner, req.Credential)
	if err != nil {
		return errorResponse(c, err)
	}

	resp := saveCredentialsResponse{Credential: cred}
	if webhookWarning {
		resp.Warning = "Credentials saved but webhook registration failed; inbound messages will not arrive until the webhook is registered"
	}
	return c.JSON(http.StatusOK, resp)
}

// ConnectionState reports the live provider connection state for a channel
// plus the caller's stored credential status.
func (h *ChannelHandler) ConnectionState(c echo.Context) error {
	callerID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "user_id not found in context"})
	}

	state, err := h.channels.ConnectionState(c.Request().Context(), models.ChannelType(c.Param("type")), &callerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// Deactivate disables a channel's stored credential.
func (h *ChannelHandler) Deactivate(c echo.Context) error {
	callerID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "user_id not found in context"})
	}

	err := h.channels.Deactivate(c.Request().Context(), models.ChannelType(c.Param("type")), &callerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
