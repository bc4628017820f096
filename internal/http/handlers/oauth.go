package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"os"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"omnigate/internal/oauth"
	"omnigate/pkg/models"
)

// OAuthHandler runs the browser-redirect part of Meta channel onboarding.
// The flow context never rides in the redirect URL; only an opaque state
// token does, and it is single-use.
type OAuthHandler struct {
	states      *oauth.StateStore
	appID       string
	redirectURI string
}

// NewOAuthHandler creates a new oauth handler. states may be nil when redis
// is not configured; the endpoints then answer 503.
func NewOAuthHandler(states *oauth.StateStore) *OAuthHandler {
	return &OAuthHandler{
		states:      states,
		appID:       os.Getenv("META_APP_ID"),
		redirectURI: os.Getenv("OAUTH_REDIRECT_URL"),
	}
}

// Start begins an OAuth flow for a Meta channel and returns the authorize
// URL the operator's browser must visit.
func (h *OAuthHandler) Start(c echo.Context) error {
	if h.states == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "OAuth flows require redis"})
	}
	callerID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "user_id not found in context"})
	}

	channelType := models.ChannelType(c.Param("type"))
	if channelType != models.ChannelFacebook && channelType != models.ChannelInstagram {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "OAuth onboarding is only available for facebook and instagram"})
	}

	token, err := h.states.Begin(c.Request().Context(), oauth.PendingFlow{
		UserID:      callerID,
		ChannelType: channelType,
		RedirectURI: h.redirectURI,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	q := url.Values{}
	q.Set("client_id", h.appID)
	q.Set("redirect_uri", h.redirectURI)
	q.Set("state", token)
	q.Set("scope", "pages_messaging,pages_show_list,instagram_manage_messages")

	return c.JSON(http.StatusOK, map[string]string{
		"authorize_url": "https://www.facebook.com/v19.0/dialog/oauth?" + q.Encode(),
	})
}

// Callback consumes the state token the provider echoed back and hands the
// flow context plus the authorization code to the operator UI, which
// finishes by saving the exchanged credential through the credentials
// endpoint.
func (h *OAuthHandler) Callback(c echo.Context) error {
	if h.states == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "OAuth flows require redis"})
	}

	state := c.QueryParam("state")
	code := c.QueryParam("code")
	if state == "" || code == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing state or code"})
	}

	flow, err := h.states.Consume(c.Request().Context(), state)
	if errors.Is(err, oauth.ErrStateNotFound) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "state token expired or already used"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"channel_type": flow.ChannelType,
		"user_id":      flow.UserID,
		"code":         code,
	})
}
