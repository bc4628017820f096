package channel

import (
	"context"
	"encoding/json"
	"fmt"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/rs/zerolog/log"

	"omnigate/pkg/models"
)

// TelegramCredential is the opaque credential blob for a Telegram channel.
type TelegramCredential struct {
	BotToken string `json:"bot_token"`
}

// TelegramConfigurator validates Telegram bot credentials and registers the
// inbound webhook. Constructing the bot client performs a getMe
// introspection call, which is the provider-side validity check.
type TelegramConfigurator struct {
	apiEndpoint string
}

// NewTelegramConfigurator creates a configurator against the public Bot API.
func NewTelegramConfigurator() *TelegramConfigurator {
	return &TelegramConfigurator{apiEndpoint: tgbotapi.APIEndpoint}
}

// NewTelegramConfiguratorWithEndpoint points the configurator at a custom
// Bot API endpoint. Used by tests.
func NewTelegramConfiguratorWithEndpoint(endpoint string) *TelegramConfigurator {
	return &TelegramConfigurator{apiEndpoint: endpoint}
}

func (c *TelegramConfigurator) Channel() models.ChannelType { return models.ChannelTelegram }

// ValidateCredentials introspects the bot token via getMe. An invalid token
// is a ConfigurationError and aborts the save transaction.
func (c *TelegramConfigurator) ValidateCredentials(ctx context.Context, credential string) error {
	cred, err := c.parse(credential)
	if err != nil {
		return err
	}

	if _, err := c.connect(cred.BotToken); err != nil {
		return &models.ConfigurationError{
			Channel: models.ChannelTelegram,
			Reason:  "bot token introspection failed",
			Err:     err,
		}
	}
	return nil
}

// RegisterWebhook points the bot's webhook at webhookURL. Failures here are
// surfaced by the caller as a warning, not a save abort.
func (c *TelegramConfigurator) RegisterWebhook(ctx context.Context, credential, webhookURL string) error {
	cred, err := c.parse(credential)
	if err != nil {
		return err
	}

	bot, err := c.connect(cred.BotToken)
	if err != nil {
		return &models.TransportError{Channel: models.ChannelTelegram, Err: err}
	}

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("failed to build webhook config: %w", err)
	}
	if _, err := bot.Request(wh); err != nil {
		return &models.TransportError{Channel: models.ChannelTelegram, Err: fmt.Errorf("setWebhook failed: %w", err)}
	}

	log.Info().Str("webhook_url", webhookURL).Msg("Telegram webhook registered")
	return nil
}

func (c *TelegramConfigurator) parse(credential string) (*TelegramCredential, error) {
	var cred TelegramCredential
	if err := json.Unmarshal([]byte(credential), &cred); err != nil {
		return nil, &models.ConfigurationError{
			Channel: models.ChannelTelegram,
			Reason:  "malformed credential payload",
			Err:     err,
		}
	}
	if cred.BotToken == "" {
		return nil, &models.ConfigurationError{Channel: models.ChannelTelegram, Reason: "bot_token is required"}
	}
	return &cred, nil
}

func (c *TelegramConfigurator) connect(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPIWithAPIEndpoint(token, c.apiEndpoint)
}
