package handlers

import (
	"omnigate/internal/app"
	"omnigate/internal/http/middleware"

	"github.com/labstack/echo/v4"
)

// SetupRoutes sets up all API routes
func SetupRoutes(api *echo.Group, services *app.Services) {
	messageHandler := NewMessageHandler(services.Dispatcher, services.ConversationRepo, services.MessageRepo)
	channelHandler := NewChannelHandler(services.ChannelService)
	wsHandler := NewWebSocketHandler(services.Hub, services.JWTSecret)
	oauthHandler := NewOAuthHandler(services.OAuthStates)

	// WebSocket endpoint (handles authentication manually via query parameter)
	api.GET("/ws", wsHandler.Handle)

	// OAuth callback arrives from the provider without our auth header.
	api.GET("/oauth/callback", oauthHandler.Callback)

	// Protected routes (require authentication)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(services.JWTSecret))

	conversations := protected.Group("/conversations")
	conversations.GET("", messageHandler.ListConversations)
	conversations.POST("", messageHandler.CreateConversation)
	conversations.GET("/:id/messages", messageHandler.ListMessages)
	conversations.POST("/:id/messages", messageHandler.Send)
	conversations.PUT("/:id", messageHandler.UpdateConversation)
	conversations.DELETE("/:id", messageHandler.DeleteConversation)
	conversations.POST("/:id/read", messageHandler.MarkRead)
	conversations.PUT("/:id/messages/:messageID/status", messageHandler.UpdateMessageStatus)
	conversations.DELETE("/:id/messages/:messageID", messageHandler.DeleteMessage)

	channels := protected.Group("/channels")
	channels.PUT("/:type/credentials", channelHandler.SaveCredentials)
	channels.DELETE("/:type/credentials", channelHandler.Deactivate)
	channels.GET("/:type/state", channelHandler.ConnectionState)
	channels.GET("/:type/oauth/start", oauthHandler.Start)
}
