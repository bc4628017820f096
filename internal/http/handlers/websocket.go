package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"omnigate/internal/auth"
	"omnigate/internal/ws"
)

// WebSocketHandler upgrades event-stream connections and hands them to the
// hub.
type WebSocketHandler struct {
	hub      *ws.Hub
	secret   []byte
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(hub *ws.Hub, secret []byte) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		secret: secret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle authenticates the query-string token, upgrades the connection and
// blocks serving it until the peer disconnects.
func (h *WebSocketHandler) Handle(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing token"})
	}

	userID, err := auth.ValidateToken(token, h.secret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return err
	}

	h.hub.Serve(userID, conn)
	return nil
}
