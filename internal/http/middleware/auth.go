package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"omnigate/internal/auth"
)

// JWTAuth extracts and validates the Bearer token, storing the authenticated
// user id under "user_id" for downstream handlers.
func JWTAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			userID, err := auth.ValidateToken(token, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			c.Set("user_id", userID)
			return next(c)
		}
	}
}
