package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"omnigate/pkg/models"
)

// errorResponse maps the error taxonomy onto HTTP statuses. Validation and
// channel problems are the client's fault; provider rejections surface as
// 502 with the provider body attached; a persistence failure after a
// successful send is a 500 that explicitly says the message went out.
func errorResponse(c echo.Context, err error) error {
	var (
		validationErr  *models.ValidationError
		unsupportedCh  *models.UnsupportedChannelError
		unsupportedOp  *models.UnsupportedOperationError
		unresolvable   *models.UnresolvableIdentifierError
		configErr      *models.ConfigurationError
		transportErr   *models.TransportError
		persistenceErr *models.PersistenceError
	)

	switch {
	case errors.Is(err, models.ErrConversationNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Conversation not found"})
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": validationErr.Error()})
	case errors.As(err, &unsupportedCh):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": unsupportedCh.Error()})
	case errors.As(err, &unsupportedOp):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": unsupportedOp.Error()})
	case errors.As(err, &unresolvable):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": unresolvable.Error()})
	case errors.As(err, &configErr):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": configErr.Error()})
	case errors.As(err, &transportErr):
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error":           "Provider rejected the request",
			"provider_status": transportErr.StatusCode,
			"provider_body":   transportErr.Body,
		})
	case errors.As(err, &persistenceErr):
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":       "Message was sent but could not be recorded",
			"external_id": persistenceErr.ExternalID,
		})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
