package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"omnigate/pkg/models"
)

func TestErrorResponseStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", models.ErrConversationNotFound, http.StatusNotFound},
		{"validation", &models.ValidationError{Field: "text", Reason: "empty"}, http.StatusBadRequest},
		{"unsupported channel", &models.UnsupportedChannelError{Value: "fax"}, http.StatusBadRequest},
		{"unsupported operation", &models.UnsupportedOperationError{Channel: models.ChannelTeams, Operation: "create_group"}, http.StatusUnprocessableEntity},
		{"unresolvable", &models.UnresolvableIdentifierError{Identifier: "123@lid"}, http.StatusUnprocessableEntity},
		{"configuration", &models.ConfigurationError{Channel: models.ChannelTelegram, Reason: "bad token"}, http.StatusUnprocessableEntity},
		{"transport", &models.TransportError{Channel: models.ChannelWhatsApp, StatusCode: 500, Body: "boom"}, http.StatusBadGateway},
		{"persistence", &models.PersistenceError{ConversationID: uuid.New(), ExternalID: "X", Err: errors.New("db down")}, http.StatusInternalServerError},
		{"unknown", errors.New("anything else"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := errorResponse(c, tt.err); err != nil {
				t.Fatalf("errorResponse returned %v", err)
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
