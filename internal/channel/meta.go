package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"omnigate/pkg/models"
)

const metaGraphBaseURL = "https://graph.facebook.com/v19.0"

// MetaCredential is the opaque credential blob for Facebook Messenger and
// Instagram channels: a page (or business account) id plus its access token.
type MetaCredential struct {
	PageID      string `json:"page_id"`
	AccessToken string `json:"access_token"`
}

// MetaConfigurator validates page credentials against the Meta Graph API and
// subscribes the application to the page's messaging webhooks. One instance
// serves both Facebook Messenger and Instagram, which share the Graph
// surface.
type MetaConfigurator struct {
	channel    models.ChannelType
	baseURL    string
	httpClient *http.Client
}

// NewMetaConfigurator creates a configurator for facebook or instagram.
// baseURL overrides the Graph endpoint; empty selects the public one.
func NewMetaConfigurator(channel models.ChannelType, baseURL string) *MetaConfigurator {
	if baseURL == "" {
		baseURL = metaGraphBaseURL
	}
	return &MetaConfigurator{
		channel:    channel,
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
	}
}

func (c *MetaConfigurator) Channel() models.ChannelType { return c.channel }

// ValidateCredentials checks the page token by resolving the page id with
// it. A rejected token is a ConfigurationError and aborts the save.
func (c *MetaConfigurator) ValidateCredentials(ctx context.Context, credential string) error {
	cred, err := c.parse(credential)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s?fields=id,name&access_token=%s",
		c.baseURL, url.PathEscape(cred.PageID), url.QueryEscape(cred.AccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &models.ConfigurationError{Channel: c.channel, Reason: "page token check unreachable", Err: err}
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		terr := transportError(c.channel, resp)
		return &models.ConfigurationError{Channel: c.channel, Reason: "page token rejected", Err: terr}
	}
	return nil
}

// RegisterWebhook subscribes the app to the page's messaging events. The
// webhook callback URL itself is configured at the Meta app level; this call
// activates delivery for the page.
func (c *MetaConfigurator) RegisterWebhook(ctx context.Context, credential, webhookURL string) error {
	cred, err := c.parse(credential)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/subscribed_apps?subscribed_fields=messages,messaging_postbacks&access_token=%s",
		c.baseURL, url.PathEscape(cred.PageID), url.QueryEscape(cred.AccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connectionError(c.channel, err)
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return transportError(c.channel, resp)
	}

	log.Info().Str("channel", string(c.channel)).Str("page_id", cred.PageID).Msg("Webhook subscription registered")
	return nil
}

func (c *MetaConfigurator) parse(credential string) (*MetaCredential, error) {
	var cred MetaCredential
	if err := json.Unmarshal([]byte(credential), &cred); err != nil {
		return nil, &models.ConfigurationError{Channel: c.channel, Reason: "malformed credential payload", Err: err}
	}
	if cred.PageID == "" || cred.AccessToken == "" {
		return nil, &models.ConfigurationError{Channel: c.channel, Reason: "page_id and access_token are required"}
	}
	return &cred, nil
}
