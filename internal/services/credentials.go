package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"omnigate/internal/channel"
	"omnigate/pkg/models"
)

// CredentialStore persists channel credentials.
type CredentialStore interface {
	Save(ctx context.Context, cred *models.ChannelCredential) error
	GetActive(ctx context.Context, channel models.ChannelType, ownerID *uuid.UUID) (*models.ChannelCredential, error)
	Deactivate(ctx context.Context, channel models.ChannelType, ownerID *uuid.UUID) error
}

// ChannelState combines the live provider connection state with what is
// known about the stored credential for the caller.
type ChannelState struct {
	State           string `json:"state"`
	Configured      bool   `json:"configured"`
	WebhookVerified bool   `json:"webhook_verified"`
}

// ChannelService manages channel credentials and setup-path operations.
type ChannelService struct {
	registry    *channel.Registry
	credentials CredentialStore
	webhookBase string
}

// NewChannelService creates the channel setup service. webhookBase is the
// externally reachable URL prefix inbound webhooks are registered under.
func NewChannelService(registry *channel.Registry, credentials CredentialStore, webhookBase string) *ChannelService {
	return &ChannelService{
		registry:    registry,
		credentials: credentials,
		webhookBase: webhookBase,
	}
}

// SaveCredentials validates a credential set against the provider and stores
// it. Validation failure aborts the save entirely; nothing is persisted with
// a credential the provider rejected. Webhook registration failure does NOT
// abort: the credential is stored with webhook_verified=false and the second
// return value reports the warning.
func (s *ChannelService) SaveCredentials(ctx context.Context, channelType models.ChannelType, scope models.CredentialScope, ownerID *uuid.UUID, credential string) (*models.ChannelCredential, bool, error) {
	channelType, err := channel.TypeOf(channelType)
	if err != nil {
		return nil, false, err
	}

	configurator, err := s.registry.Configurator(channelType)
	if err != nil {
		return nil, false, err
	}

	if err := configurator.ValidateCredentials(ctx, credential); err != nil {
		return nil, false, err
	}

	webhookVerified := true
	webhookURL := s.webhookBase + "/webhooks/" + string(channelType)
	if err := configurator.RegisterWebhook(ctx, credential, webhookURL); err != nil {
		log.Warn().Err(err).
			Str("channel", string(channelType)).
			Str("webhook_url", webhookURL).
			Msg("Webhook registration failed, credential saved unverified")
		webhookVerified = false
	}

	cred := &models.ChannelCredential{
		ChannelType:     channelType,
		Scope:           scope,
		OwnerID:         ownerID,
		Credential:      credential,
		WebhookVerified: webhookVerified,
		IsActive:        true,
	}
	if scope == models.ScopeGlobal {
		cred.OwnerID = nil
	}

	if err := s.credentials.Save(ctx, cred); err != nil {
		return nil, false, err
	}

	log.Info().
		Str("channel", string(channelType)).
		Str("scope", string(scope)).
		Bool("webhook_verified", webhookVerified).
		Msg("Channel credentials saved")

	return cred, !webhookVerified, nil
}

// ConnectionState reports the provider-side connection state for a channel
// together with the stored credential's verification status.
func (s *ChannelService) ConnectionState(ctx context.Context, channelType models.ChannelType, ownerID *uuid.UUID) (*ChannelState, error) {
	channelType, err := channel.TypeOf(channelType)
	if err != nil {
		return nil, err
	}
	provider, err := s.registry.Provider(channelType)
	if err != nil {
		return nil, err
	}

	state, err := provider.ConnectionState(ctx)
	if err != nil {
		return nil, err
	}

	cred, err := s.credentials.GetActive(ctx, channelType, ownerID)
	if err != nil {
		return nil, err
	}

	result := &ChannelState{State: state}
	if cred != nil {
		result.Configured = true
		result.WebhookVerified = cred.WebhookVerified
	}
	return result, nil
}

// Deactivate disables a channel's stored credential.
func (s *ChannelService) Deactivate(ctx context.Context, channelType models.ChannelType, ownerID *uuid.UUID) error {
	channelType, err := channel.TypeOf(channelType)
	if err != nil {
		return err
	}
	return s.credentials.Deactivate(ctx, channelType, ownerID)
}
