package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"omnigate/pkg/models"
)

func TestMetaValidateCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page-42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"page-42","name":"Store"}`))
	}))
	defer server.Close()

	c := NewMetaConfigurator(models.ChannelFacebook, server.URL)

	if err := c.ValidateCredentials(context.Background(), `{"page_id":"page-42","access_token":"tok"}`); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}

	err := c.ValidateCredentials(context.Background(), `{"page_id":"page-42","access_token":"bad"}`)
	var cerr *models.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, expected ConfigurationError", err)
	}
}

func TestMetaValidateCredentialsMissingFields(t *testing.T) {
	c := NewMetaConfigurator(models.ChannelInstagram, "http://unused")

	var cerr *models.ConfigurationError
	if err := c.ValidateCredentials(context.Background(), `{"page_id":"x"}`); !errors.As(err, &cerr) {
		t.Errorf("error = %v, expected ConfigurationError", err)
	}
	if err := c.ValidateCredentials(context.Background(), `not json`); !errors.As(err, &cerr) {
		t.Errorf("error = %v, expected ConfigurationError", err)
	}
}

func TestMetaRegisterWebhook(t *testing.T) {
	var subscribed bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/page-42/subscribed_apps" {
			subscribed = true
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewMetaConfigurator(models.ChannelInstagram, server.URL)
	if err := c.RegisterWebhook(context.Background(), `{"page_id":"page-42","access_token":"tok"}`, "https://gw.example.com/webhook"); err != nil {
		t.Fatalf("RegisterWebhook error: %v", err)
	}
	if !subscribed {
		t.Error("subscription call never reached the server")
	}
}

func TestMetaRegisterWebhookFailureIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"(#100) app not installed"}}`))
	}))
	defer server.Close()

	c := NewMetaConfigurator(models.ChannelFacebook, server.URL)
	err := c.RegisterWebhook(context.Background(), `{"page_id":"page-42","access_token":"tok"}`, "https://gw.example.com/webhook")
	var terr *models.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, expected TransportError", err)
	}
}
