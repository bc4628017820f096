package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"omnigate/internal/identity"
	"omnigate/internal/media"
	"omnigate/pkg/models"
)

// WhatsAppConfig configures the generic REST WhatsApp provider.
type WhatsAppConfig struct {
	BaseURL  string `json:"base_url"`
	Instance string `json:"instance"`
	APIKey   string `json:"api_key"`
	// SendBase64 selects the sub-variant that carries media inline as
	// base64 instead of a fetchable URL.
	SendBase64 bool `json:"send_base64"`
	// AcceptsLID is true for Baileys-backed gateways that address opaque
	// LIDs natively.
	AcceptsLID bool `json:"accepts_lid"`
}

// WhatsAppProvider talks to an Evolution-style REST WhatsApp gateway:
// JSON bodies posted to endpoints templated with an instance identifier,
// authenticated by a static apikey header.
type WhatsAppProvider struct {
	cfg        WhatsAppConfig
	httpClient *http.Client
}

// NewWhatsAppProvider creates a REST WhatsApp provider.
func NewWhatsAppProvider(cfg WhatsAppConfig) *WhatsAppProvider {
	return &WhatsAppProvider{
		cfg:        cfg,
		httpClient: newHTTPClient(),
	}
}

func (p *WhatsAppProvider) Channel() models.ChannelType { return models.ChannelWhatsApp }

func (p *WhatsAppProvider) Capabilities() identity.ProviderCapabilities {
	return identity.ProviderCapabilities{
		AcceptsLID:  p.cfg.AcceptsLID,
		PhoneSuffix: "@s.whatsapp.net",
	}
}

type waSendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type waSendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	MimeType  string `json:"mimetype"`
	Caption   string `json:"caption,omitempty"`
	Media     string `json:"media"`
	FileName  string `json:"fileName,omitempty"`
	Animated  bool   `json:"animated,omitempty"`
}

type waSendAudioRequest struct {
	Number string `json:"number"`
	Audio  string `json:"audio"`
}

type waSendLocationRequest struct {
	Number    string  `json:"number"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// waSendResponse is the gateway's message confirmation envelope.
type waSendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// SendText posts a plain text message.
func (p *WhatsAppProvider) SendText(ctx context.Context, dest, text string) (*SendResult, error) {
	var resp waSendResponse
	if err := p.postPath(ctx, "/message/sendText", waSendTextRequest{Number: dest, Text: text}, &resp); err != nil {
		return nil, err
	}
	log.Debug().Str("dest", dest).Str("external_id", resp.Key.ID).Msg("WhatsApp text sent")
	return &SendResult{ExternalID: resp.Key.ID}, nil
}

// SendMedia posts an image/video/document/sticker through sendMedia and
// audio through sendWhatsAppAudio. A GIF is a distinguished sub-case: the
// gateway renders it animated only when sent with its original mimetype and
// the explicit animated flag, never as a generic still image.
func (p *WhatsAppProvider) SendMedia(ctx context.Context, dest string, staged *media.StagedMedia, caption string) (*SendResult, error) {
	payload, err := p.mediaPayload(staged)
	if err != nil {
		return nil, err
	}

	if staged.MediaType == models.MessageAudio {
		var resp waSendResponse
		if err := p.postPath(ctx, "/message/sendWhatsAppAudio", waSendAudioRequest{Number: dest, Audio: payload}, &resp); err != nil {
			return nil, err
		}
		return &SendResult{ExternalID: resp.Key.ID}, nil
	}

	req := waSendMediaRequest{
		Number:    dest,
		MediaType: gatewayMediaType(staged.MediaType),
		MimeType:  staged.MimeType,
		Caption:   caption,
		Media:     payload,
		FileName:  staged.OriginalName,
	}
	if staged.MimeType == "image/gif" {
		req.Animated = true
	}

	var resp waSendResponse
	if err := p.postPath(ctx, "/message/sendMedia", req, &resp); err != nil {
		return nil, err
	}
	log.Debug().Str("dest", dest).Str("mediatype", req.MediaType).Str("external_id", resp.Key.ID).Msg("WhatsApp media sent")
	return &SendResult{ExternalID: resp.Key.ID}, nil
}

// SendLocation posts a location pin.
func (p *WhatsAppProvider) SendLocation(ctx context.Context, dest string, latitude, longitude float64, title string) (*SendResult, error) {
	var resp waSendResponse
	req := waSendLocationRequest{Number: dest, Latitude: latitude, Longitude: longitude, Name: title}
	if err := p.postPath(ctx, "/message/sendLocation", req, &resp); err != nil {
		return nil, err
	}
	return &SendResult{ExternalID: resp.Key.ID}, nil
}

// ConnectionState reports the gateway instance state ("open", "connecting",
// "close").
func (p *WhatsAppProvider) ConnectionState(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/instance/connectionState/%s", p.cfg.BaseURL, p.cfg.Instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", p.cfg.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", connectionError(models.ChannelWhatsApp, err)
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return "", transportError(models.ChannelWhatsApp, resp)
	}

	var body struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &models.TransportError{Channel: models.ChannelWhatsApp, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return body.Instance.State, nil
}

// IdentifierExists asks the gateway whether a number is registered on
// WhatsApp.
func (p *WhatsAppProvider) IdentifierExists(ctx context.Context, dest string) (bool, error) {
	var resp []struct {
		Exists bool   `json:"exists"`
		JID    string `json:"jid"`
	}
	req := map[string][]string{"numbers": {strings.TrimSuffix(dest, "@s.whatsapp.net")}}
	if err := p.postPath(ctx, "/chat/whatsappNumbers", req, &resp); err != nil {
		return false, err
	}
	return len(resp) > 0 && resp[0].Exists, nil
}

// ProfilePictureURL fetches the counterparty's avatar URL.
func (p *WhatsAppProvider) ProfilePictureURL(ctx context.Context, dest string) (string, error) {
	var resp struct {
		ProfilePictureURL string `json:"profilePictureUrl"`
	}
	req := map[string]string{"number": dest}
	if err := p.postPath(ctx, "/chat/fetchProfilePictureUrl", req, &resp); err != nil {
		return "", err
	}
	return resp.ProfilePictureURL, nil
}

// CreateGroup creates a WhatsApp group and returns its id.
func (p *WhatsAppProvider) CreateGroup(ctx context.Context, name string, participants []string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	req := map[string]interface{}{"subject": name, "participants": participants}
	if err := p.postPath(ctx, "/group/create", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// mediaPayload returns the media field value for the configured sub-variant:
// inline base64 or the staged file's public URL.
func (p *WhatsAppProvider) mediaPayload(staged *media.StagedMedia) (string, error) {
	if p.cfg.SendBase64 {
		return staged.Base64()
	}
	return staged.PublicURL, nil
}

// postPath posts JSON to an endpoint templated with the instance
// identifier and decodes the response into out.
func (p *WhatsAppProvider) postPath(ctx context.Context, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s%s/%s", p.cfg.BaseURL, path, p.cfg.Instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.cfg.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return connectionError(models.ChannelWhatsApp, err)
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return transportError(models.ChannelWhatsApp, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &models.TransportError{Channel: models.ChannelWhatsApp, Err: fmt.Errorf("malformed response: %w", err)}
		}
	}
	return nil
}

func gatewayMediaType(t models.MessageType) string {
	switch t {
	case models.MessageVideo:
		return "video"
	case models.MessageDocument:
		return "document"
	case models.MessageSticker:
		return "sticker"
	default:
		return "image"
	}
}
