package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"omnigate/pkg/models"
)

// newBotAPIServer fakes the Telegram Bot API. Valid tokens pass getMe;
// everything else gets a 401.
func newBotAPIServer(t *testing.T, validToken string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/bot"+validToken+"/") {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Gateway","username":"gateway_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/setWebhook"):
			w.Write([]byte(`{"ok":true,"result":true,"description":"Webhook was set"}`))
		default:
			w.Write([]byte(`{"ok":true,"result":{}}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTelegramValidateCredentials(t *testing.T) {
	server := newBotAPIServer(t, "123:GOOD")
	c := NewTelegramConfiguratorWithEndpoint(server.URL + "/bot%s/%s")

	if err := c.ValidateCredentials(context.Background(), `{"bot_token":"123:GOOD"}`); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}

	err := c.ValidateCredentials(context.Background(), `{"bot_token":"123:BAD"}`)
	var cerr *models.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, expected ConfigurationError", err)
	}
	if cerr.Channel != models.ChannelTelegram {
		t.Errorf("channel = %q", cerr.Channel)
	}
}

func TestTelegramValidateCredentialsMissingToken(t *testing.T) {
	c := NewTelegramConfigurator()

	var cerr *models.ConfigurationError
	if err := c.ValidateCredentials(context.Background(), `{}`); !errors.As(err, &cerr) {
		t.Errorf("error = %v, expected ConfigurationError", err)
	}
}

func TestTelegramRegisterWebhook(t *testing.T) {
	server := newBotAPIServer(t, "123:GOOD")
	c := NewTelegramConfiguratorWithEndpoint(server.URL + "/bot%s/%s")

	if err := c.RegisterWebhook(context.Background(), `{"bot_token":"123:GOOD"}`, "https://gw.example.com/webhook/telegram"); err != nil {
		t.Fatalf("RegisterWebhook error: %v", err)
	}
}

func TestTelegramRegisterWebhookBadToken(t *testing.T) {
	server := newBotAPIServer(t, "123:GOOD")
	c := NewTelegramConfiguratorWithEndpoint(server.URL + "/bot%s/%s")

	err := c.RegisterWebhook(context.Background(), `{"bot_token":"123:BAD"}`, "https://gw.example.com/webhook/telegram")
	var terr *models.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, expected TransportError", err)
	}
}
