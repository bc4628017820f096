package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"omnigate/internal/channel"
	"omnigate/pkg/models"
)

type fakeCredentialStore struct {
	saved       *models.ChannelCredential
	saveErr     error
	deactivated models.ChannelType
}

func (f *fakeCredentialStore) Save(ctx context.Context, cred *models.ChannelCredential) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = cred
	return nil
}

func (f *fakeCredentialStore) GetActive(ctx context.Context, ch models.ChannelType, ownerID *uuid.UUID) (*models.ChannelCredential, error) {
	if f.saved != nil && f.saved.ChannelType == ch {
		return f.saved, nil
	}
	return nil, nil
}

func (f *fakeCredentialStore) Deactivate(ctx context.Context, ch models.ChannelType, ownerID *uuid.UUID) error {
	f.deactivated = ch
	return nil
}

type fakeConfigurator struct {
	channelType models.ChannelType
	validateErr error
	webhookErr  error
	webhookURL  string
}

func (f *fakeConfigurator) Channel() models.ChannelType { return f.channelType }

func (f *fakeConfigurator) ValidateCredentials(ctx context.Context, credential string) error {
	return f.validateErr
}

func (f *fakeConfigurator) RegisterWebhook(ctx context.Context, credential, webhookURL string) error {
	f.webhookURL = webhookURL
	return f.webhookErr
}

func newChannelService(cfg *fakeConfigurator, store *fakeCredentialStore) *ChannelService {
	registry := channel.NewRegistry()
	registry.RegisterConfigurator(cfg)
	return NewChannelService(registry, store, "https://gateway.example.com")
}

func TestSaveCredentialsHappyPath(t *testing.T) {
	cfg := &fakeConfigurator{channelType: models.ChannelTelegram}
	store := &fakeCredentialStore{}
	svc := newChannelService(cfg, store)

	owner := uuid.New()
	cred, warning, err := svc.SaveCredentials(context.Background(), models.ChannelTelegram, models.ScopeUser, &owner, `{"bot_token":"123:abc"}`)
	if err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}
	if warning {
		t.Error("unexpected webhook warning")
	}
	if !cred.WebhookVerified {
		t.Error("webhook_verified should be true after successful registration")
	}
	if store.saved == nil {
		t.Fatal("credential was not persisted")
	}
	if cfg.webhookURL != "https://gateway.example.com/webhooks/telegram" {
		t.Errorf("webhook url = %q", cfg.webhookURL)
	}
}

func TestSaveCredentialsValidationFailureAborts(t *testing.T) {
	cfg := &fakeConfigurator{
		channelType: models.ChannelTelegram,
		validateErr: &models.ConfigurationError{Channel: models.ChannelTelegram, Reason: "unauthorized"},
	}
	store := &fakeCredentialStore{}
	svc := newChannelService(cfg, store)

	_, _, err := svc.SaveCredentials(context.Background(), models.ChannelTelegram, models.ScopeGlobal, nil, `{"bot_token":"bad"}`)
	var ce *models.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigurationError", err)
	}
	if store.saved != nil {
		t.Fatal("rejected credential must not be persisted")
	}
}

func TestSaveCredentialsWebhookFailureIsWarning(t *testing.T) {
	cfg := &fakeConfigurator{
		channelType: models.ChannelFacebook,
		webhookErr:  &models.TransportError{Channel: models.ChannelFacebook, StatusCode: 400, Body: "bad url"},
	}
	store := &fakeCredentialStore{}
	svc := newChannelService(cfg, store)

	cred, warning, err := svc.SaveCredentials(context.Background(), models.ChannelFacebook, models.ScopeGlobal, nil, `{"page_id":"1","access_token":"t"}`)
	if err != nil {
		t.Fatalf("webhook failure must not abort the save: %v", err)
	}
	if !warning {
		t.Error("expected webhook warning")
	}
	if cred.WebhookVerified {
		t.Error("webhook_verified should be false after failed registration")
	}
	if store.saved == nil {
		t.Fatal("credential should still be persisted")
	}
}

func TestSaveCredentialsGlobalScopeDropsOwner(t *testing.T) {
	cfg := &fakeConfigurator{channelType: models.ChannelTeams}
	store := &fakeCredentialStore{}
	svc := newChannelService(cfg, store)

	owner := uuid.New()
	cred, _, err := svc.SaveCredentials(context.Background(), models.ChannelTeams, models.ScopeGlobal, &owner, `{"access_token":"t"}`)
	if err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}
	if cred.OwnerID != nil {
		t.Error("global scope credential must not carry an owner")
	}
}

func TestSaveCredentialsUnknownChannel(t *testing.T) {
	svc := newChannelService(&fakeConfigurator{channelType: models.ChannelTelegram}, &fakeCredentialStore{})

	_, _, err := svc.SaveCredentials(context.Background(), "fax", models.ScopeGlobal, nil, "{}")
	var uce *models.UnsupportedChannelError
	if !errors.As(err, &uce) {
		t.Fatalf("error = %v, want UnsupportedChannelError", err)
	}
}

func TestConnectionStateReportsCredential(t *testing.T) {
	registry := channel.NewRegistry()
	registry.RegisterProvider(&fakeProvider{channelType: models.ChannelWhatsApp})
	registry.RegisterConfigurator(&fakeConfigurator{channelType: models.ChannelWhatsApp})
	store := &fakeCredentialStore{}
	svc := NewChannelService(registry, store, "https://gateway.example.com")

	owner := uuid.New()
	state, err := svc.ConnectionState(context.Background(), models.ChannelWhatsApp, &owner)
	if err != nil {
		t.Fatalf("ConnectionState failed: %v", err)
	}
	if state.State != "open" {
		t.Errorf("state = %q, want open", state.State)
	}
	if state.Configured {
		t.Error("no credential saved yet, configured should be false")
	}

	if _, _, err := svc.SaveCredentials(context.Background(), models.ChannelWhatsApp, models.ScopeUser, &owner, `{"api_key":"k"}`); err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}
	state, err = svc.ConnectionState(context.Background(), models.ChannelWhatsApp, &owner)
	if err != nil {
		t.Fatalf("ConnectionState failed: %v", err)
	}
	if !state.Configured || !state.WebhookVerified {
		t.Errorf("state = %+v, want configured and webhook verified", state)
	}
}

func TestSaveCredentialsChannelWithoutConfigurator(t *testing.T) {
	svc := newChannelService(&fakeConfigurator{channelType: models.ChannelTelegram}, &fakeCredentialStore{})

	_, _, err := svc.SaveCredentials(context.Background(), models.ChannelTeams, models.ScopeGlobal, nil, "{}")
	var uce *models.UnsupportedChannelError
	if !errors.As(err, &uce) {
		t.Fatalf("error = %v, want UnsupportedChannelError", err)
	}
}
