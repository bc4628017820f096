// Package auth validates the HMAC-signed JWTs that authenticate both REST
// and WebSocket clients.
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ValidateToken checks an HMAC-signed JWT and extracts the user id claim.
// REST clients carry the token in the Authorization header; WebSocket
// clients cannot set headers, so theirs rides on the URL query string.
func ValidateToken(tokenString string, secret []byte) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}
	raw, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing user_id claim")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("malformed user_id claim")
	}
	return userID, nil
}
