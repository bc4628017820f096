package app

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"omnigate/internal/channel"
	"omnigate/internal/identity"
	"omnigate/internal/media"
	"omnigate/internal/oauth"
	"omnigate/internal/repo"
	"omnigate/internal/services"
	"omnigate/internal/ws"
	"omnigate/pkg/models"
)

// Services holds all application services
type Services struct {
	DB        *gorm.DB
	JWTSecret []byte

	ConversationRepo *repo.ConversationRepository
	MessageRepo      *repo.MessageRepository
	CredentialRepo   *repo.CredentialRepository
	LIDRepo          *repo.LIDRepository

	Registry       *channel.Registry
	Detector       *channel.Detector
	Resolver       *identity.Resolver
	Pipeline       *media.Pipeline
	Hub            *ws.Hub
	Dispatcher     *services.Dispatcher
	ChannelService *services.ChannelService
	OAuthStates    *oauth.StateStore
}

// NewServices creates a new services container
func NewServices(db *gorm.DB) *Services {
	conversationRepo := repo.NewConversationRepository(db)
	messageRepo := repo.NewMessageRepository(db)
	credentialRepo := repo.NewCredentialRepository(db)
	lidRepo := repo.NewLIDRepository(db)

	resolver := identity.NewResolver(lidRepo)

	var mirror media.Mirror
	s3Mirror, err := media.NewS3MirrorFromEnv()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize media mirror, serving local files only")
	} else if s3Mirror != nil {
		mirror = s3Mirror
		log.Info().Msg("Media mirror initialized")
	}

	mediaDir := os.Getenv("MEDIA_DIR")
	if mediaDir == "" {
		mediaDir = "./storage/media"
	}
	mediaBaseURL := os.Getenv("MEDIA_BASE_URL")
	if mediaBaseURL == "" {
		mediaBaseURL = "http://localhost:8080/media"
	}
	pipeline := media.NewPipeline(mediaDir, mediaBaseURL, mirror)

	registry := channel.NewRegistry()
	registerProviders(registry)
	detector := channel.NewDetector(conversationRepo)

	hub := ws.NewHub()
	dispatcher := services.NewDispatcher(registry, resolver, pipeline, conversationRepo, messageRepo, hub)

	webhookBase := os.Getenv("WEBHOOK_BASE_URL")
	if webhookBase == "" {
		webhookBase = "http://localhost:8080"
	}
	channelService := services.NewChannelService(registry, credentialRepo, webhookBase)

	var oauthStates *oauth.StateStore
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, OAuth flows disabled")
			rdb.Close()
		} else {
			oauthStates = oauth.NewStateStore(rdb)
			log.Info().Str("addr", addr).Msg("OAuth state store initialized")
		}
	}

	return &Services{
		DB:               db,
		JWTSecret:        []byte(os.Getenv("JWT_SECRET")),
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		CredentialRepo:   credentialRepo,
		LIDRepo:          lidRepo,
		Registry:         registry,
		Detector:         detector,
		Resolver:         resolver,
		Pipeline:         pipeline,
		Hub:              hub,
		Dispatcher:       dispatcher,
		ChannelService:   channelService,
		OAuthStates:      oauthStates,
	}
}

// registerProviders wires every channel whose configuration is present.
// Setup-path configurators are always available; send-path providers need
// credentials from the environment.
func registerProviders(registry *channel.Registry) {
	registry.RegisterConfigurator(channel.NewTelegramConfigurator())
	registry.RegisterConfigurator(channel.NewMetaConfigurator(models.ChannelFacebook, ""))
	registry.RegisterConfigurator(channel.NewMetaConfigurator(models.ChannelInstagram, ""))

	if base := os.Getenv("WHATSAPP_API_URL"); base != "" {
		registry.RegisterProvider(channel.NewWhatsAppProvider(channel.WhatsAppConfig{
			BaseURL:    base,
			Instance:   os.Getenv("WHATSAPP_INSTANCE"),
			APIKey:     os.Getenv("WHATSAPP_API_KEY"),
			SendBase64: os.Getenv("WHATSAPP_SEND_BASE64") == "true",
			AcceptsLID: os.Getenv("WHATSAPP_ACCEPTS_LID") == "true",
		}))
		log.Info().Msg("WhatsApp provider registered")
	}

	if token := os.Getenv("TEAMS_ACCESS_TOKEN"); token != "" {
		registry.RegisterProvider(channel.NewTeamsProvider(channel.TeamsConfig{
			AccessToken: token,
		}))
		log.Info().Msg("Teams provider registered")
	}
}
