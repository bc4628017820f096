package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestValidateToken(t *testing.T) {
	secret := []byte("test-secret")
	userID := uuid.New()

	sign := func(claims jwt.MapClaims, key []byte) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		s, err := token.SignedString(key)
		if err != nil {
			t.Fatalf("sign failed: %v", err)
		}
		return s
	}

	t.Run("valid", func(t *testing.T) {
		got, err := ValidateToken(sign(jwt.MapClaims{"user_id": userID.String()}, secret), secret)
		if err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
		if got != userID {
			t.Errorf("user id = %s, want %s", got, userID)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		if _, err := ValidateToken(sign(jwt.MapClaims{"user_id": userID.String()}, []byte("other")), secret); err == nil {
			t.Error("token signed with the wrong secret was accepted")
		}
	})

	t.Run("missing user_id", func(t *testing.T) {
		if _, err := ValidateToken(sign(jwt.MapClaims{"role": "agent"}, secret), secret); err == nil {
			t.Error("token without user_id was accepted")
		}
	})

	t.Run("malformed user_id", func(t *testing.T) {
		if _, err := ValidateToken(sign(jwt.MapClaims{"user_id": "not-a-uuid"}, secret), secret); err == nil {
			t.Error("token with malformed user_id was accepted")
		}
	})

	t.Run("expired", func(t *testing.T) {
		claims := jwt.MapClaims{"user_id": userID.String(), "exp": time.Now().Add(-time.Hour).Unix()}
		if _, err := ValidateToken(sign(claims, secret), secret); err == nil {
			t.Error("expired token was accepted")
		}
	})
}
