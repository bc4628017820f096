package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"omnigate/internal/identity"
	"omnigate/internal/media"
	"omnigate/pkg/models"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// TeamsConfig configures the Microsoft Graph Teams provider.
type TeamsConfig struct {
	AccessToken string `json:"access_token"`
	// BaseURL overrides the Graph endpoint, used by tests.
	BaseURL string `json:"base_url,omitempty"`
}

// TeamsProvider sends chat messages through the Microsoft Graph API.
//
// Graph offers no direct attachment mechanism for externally hosted media in
// 1:1 chats, so media sends are synthesized as rich-text HTML messages
// embedding the staged file's public URL. The provider still fabricates an
// RFC-4122 attachment id for the metadata it reports; nothing downstream in
// Graph consumes it, but log tooling keys on its presence.
type TeamsProvider struct {
	cfg        TeamsConfig
	httpClient *http.Client
}

// NewTeamsProvider creates a Graph API Teams provider.
func NewTeamsProvider(cfg TeamsConfig) *TeamsProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = graphBaseURL
	}
	return &TeamsProvider{cfg: cfg, httpClient: newHTTPClient()}
}

func (p *TeamsProvider) Channel() models.ChannelType { return models.ChannelTeams }

func (p *TeamsProvider) Capabilities() identity.ProviderCapabilities {
	// Teams destinations are Graph chat ids, never phone numbers.
	return identity.ProviderCapabilities{AcceptsLID: false, PhoneSuffix: ""}
}

type graphMessageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphChatMessage struct {
	Body graphMessageBody `json:"body"`
}

type graphMessageResponse struct {
	ID string `json:"id"`
}

// SendText posts a plain text chat message.
func (p *TeamsProvider) SendText(ctx context.Context, dest, text string) (*SendResult, error) {
	resp, err := p.postMessage(ctx, dest, graphChatMessage{
		Body: graphMessageBody{ContentType: "text", Content: text},
	})
	if err != nil {
		return nil, err
	}
	return &SendResult{ExternalID: resp.ID}, nil
}

// SendMedia sends media as an HTML message embedding the staged file's
// public URL: an <img> tag for images, a download link for everything else.
// The body is deterministic for a given StagedMedia; the attachment id is
// freshly generated per call.
func (p *TeamsProvider) SendMedia(ctx context.Context, dest string, staged *media.StagedMedia, caption string) (*SendResult, error) {
	attachmentID := uuid.New().String()
	content := MediaHTMLBody(staged, caption)

	resp, err := p.postMessage(ctx, dest, graphChatMessage{
		Body: graphMessageBody{ContentType: "html", Content: content},
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("dest", dest).
		Str("external_id", resp.ID).
		Str("attachment_id", attachmentID).
		Msg("Teams media sent as HTML embed")

	return &SendResult{
		ExternalID: resp.ID,
		Metadata:   map[string]string{"attachment_id": attachmentID},
	}, nil
}

// MediaHTMLBody builds the HTML message body embedding a staged media file.
// Exported so tests can assert the exact synthesized markup.
func MediaHTMLBody(staged *media.StagedMedia, caption string) string {
	var body bytes.Buffer
	if caption != "" {
		fmt.Fprintf(&body, "<p>%s</p>", html.EscapeString(caption))
	}
	name := staged.OriginalName
	if name == "" {
		name = staged.Filename
	}
	if staged.MediaType == models.MessageImage || staged.MediaType == models.MessageSticker {
		fmt.Fprintf(&body, `<img src=%q alt=%q>`, staged.PublicURL, name)
	} else {
		fmt.Fprintf(&body, `<a href=%q>%s</a>`, staged.PublicURL, html.EscapeString(name))
	}
	return body.String()
}

// SendLocation renders a location as an HTML link to a map pin; Graph has no
// native location message for 1:1 chats.
func (p *TeamsProvider) SendLocation(ctx context.Context, dest string, latitude, longitude float64, title string) (*SendResult, error) {
	mapsURL := fmt.Sprintf("https://www.google.com/maps?q=%f,%f", latitude, longitude)
	label := title
	if label == "" {
		label = "Shared location"
	}
	content := fmt.Sprintf(`<a href=%q>%s</a>`, mapsURL, html.EscapeString(label))

	resp, err := p.postMessage(ctx, dest, graphChatMessage{
		Body: graphMessageBody{ContentType: "html", Content: content},
	})
	if err != nil {
		return nil, err
	}
	return &SendResult{ExternalID: resp.ID}, nil
}

// ConnectionState verifies the access token by resolving the signed-in
// account.
func (p *TeamsProvider) ConnectionState(ctx context.Context) (string, error) {
	resp, err := p.get(ctx, "/me")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if !is2xx(resp.StatusCode) {
		return "disconnected", transportError(models.ChannelTeams, resp)
	}
	return "connected", nil
}

// IdentifierExists resolves a user id through Graph.
func (p *TeamsProvider) IdentifierExists(ctx context.Context, dest string) (bool, error) {
	resp, err := p.get(ctx, "/users/"+dest)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if !is2xx(resp.StatusCode) {
		return false, transportError(models.ChannelTeams, resp)
	}
	return true, nil
}

// ProfilePictureURL is not exposed for Teams; Graph photo content requires
// an authenticated download instead of a public URL.
func (p *TeamsProvider) ProfilePictureURL(ctx context.Context, dest string) (string, error) {
	return "", &models.UnsupportedOperationError{Channel: models.ChannelTeams, Operation: "profile picture lookup"}
}

// CreateGroup is not supported for 1:1 Graph chats.
func (p *TeamsProvider) CreateGroup(ctx context.Context, name string, participants []string) (string, error) {
	return "", &models.UnsupportedOperationError{Channel: models.ChannelTeams, Operation: "group creation"}
}

func (p *TeamsProvider) postMessage(ctx context.Context, chatID string, msg graphChatMessage) (*graphMessageResponse, error) {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chats/%s/messages", p.cfg.BaseURL, chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, connectionError(models.ChannelTeams, err)
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, transportError(models.ChannelTeams, resp)
	}

	var out graphMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &models.TransportError{Channel: models.ChannelTeams, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return &out, nil
}

func (p *TeamsProvider) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, connectionError(models.ChannelTeams, err)
	}
	return resp, nil
}
