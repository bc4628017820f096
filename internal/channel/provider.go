// Package channel contains the provider layer: one implementation per
// messaging transport behind a single contract. Wire-protocol quirks (the
// Teams HTML-embed workaround, the WhatsApp GIF special case) live entirely
// inside their variant and never leak into the orchestrator.
package channel

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"omnigate/internal/identity"
	"omnigate/internal/media"
	"omnigate/pkg/models"
)

// SendResult is the provider's confirmation of one accepted message.
type SendResult struct {
	ExternalID string
	// Metadata carries provider-specific extras, e.g. the Teams attachment
	// id echoed for log scrapers.
	Metadata map[string]string
}

// Provider is the uniform send/status/lookup contract every transport
// implements. No provider retries internally; retry policy belongs to the
// caller. Every call is a synchronous round-trip bounded by the transport's
// connect and total timeouts.
type Provider interface {
	Channel() models.ChannelType
	Capabilities() identity.ProviderCapabilities

	SendText(ctx context.Context, dest, text string) (*SendResult, error)
	SendMedia(ctx context.Context, dest string, staged *media.StagedMedia, caption string) (*SendResult, error)
	SendLocation(ctx context.Context, dest string, latitude, longitude float64, title string) (*SendResult, error)

	ConnectionState(ctx context.Context) (string, error)
	IdentifierExists(ctx context.Context, dest string) (bool, error)
	ProfilePictureURL(ctx context.Context, dest string) (string, error)
	CreateGroup(ctx context.Context, name string, participants []string) (string, error)
}

// Configurator is the setup-path counterpart of Provider: it validates a
// freshly supplied credential set against the provider and registers the
// inbound webhook. Credential invalidity aborts the save; webhook failure is
// surfaced as a warning by the caller.
type Configurator interface {
	Channel() models.ChannelType
	ValidateCredentials(ctx context.Context, credential string) error
	RegisterWebhook(ctx context.Context, credential, webhookURL string) error
}

// Registry maps channel types to their provider instances.
type Registry struct {
	providers     map[models.ChannelType]Provider
	configurators map[models.ChannelType]Configurator
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers:     make(map[models.ChannelType]Provider),
		configurators: make(map[models.ChannelType]Configurator),
	}
}

// RegisterProvider makes a send-path provider available for its channel.
func (r *Registry) RegisterProvider(p Provider) {
	r.providers[p.Channel()] = p
}

// RegisterConfigurator makes a setup-path configurator available for its
// channel.
func (r *Registry) RegisterConfigurator(c Configurator) {
	r.configurators[c.Channel()] = c
}

// Provider returns the send-path provider for a channel type.
func (r *Registry) Provider(ct models.ChannelType) (Provider, error) {
	p, ok := r.providers[ct]
	if !ok {
		return nil, &models.UnsupportedChannelError{Value: string(ct)}
	}
	return p, nil
}

// Configurator returns the setup-path configurator for a channel type.
func (r *Registry) Configurator(ct models.ChannelType) (Configurator, error) {
	c, ok := r.configurators[ct]
	if !ok {
		return nil, &models.UnsupportedChannelError{Value: string(ct)}
	}
	return c, nil
}

const (
	connectTimeout = 15 * time.Second
	totalTimeout   = 90 * time.Second

	// maxErrorBody bounds how much of a failed response is kept for
	// diagnostics.
	maxErrorBody = 8 << 10
)

// newHTTPClient builds the HTTP client shared by all provider variants:
// distinct connect and total timeouts so one slow provider cannot hang a
// request indefinitely.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: totalTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			TLSHandshakeTimeout: connectTimeout,
		},
	}
}

// transportError turns a non-2xx provider response into a TransportError
// carrying the raw body for operator diagnostics.
func transportError(ch models.ChannelType, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &models.TransportError{
		Channel:    ch,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// connectionError wraps a transport-level failure (connection refused,
// timeout) that produced no response at all.
func connectionError(ch models.ChannelType, err error) error {
	return &models.TransportError{Channel: ch, Err: fmt.Errorf("request failed: %w", err)}
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}
