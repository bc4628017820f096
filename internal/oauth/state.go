// Package oauth holds the state-token store used by channel OAuth flows.
// Provider redirects carry an opaque random token instead of user data; the
// pending context lives server-side with a hard TTL so abandoned flows expire
// on their own.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"omnigate/pkg/models"
)

// stateTTL bounds how long a started OAuth flow may stay pending.
const stateTTL = 10 * time.Minute

// ErrStateNotFound means the token expired, was already consumed, or never
// existed. Callers treat all three the same.
var ErrStateNotFound = errors.New("oauth state not found or expired")

// PendingFlow is the server-side context of one started OAuth flow.
type PendingFlow struct {
	UserID      uuid.UUID          `json:"user_id"`
	ChannelType models.ChannelType `json:"channel_type"`
	RedirectURI string             `json:"redirect_uri"`
	StartedAt   time.Time          `json:"started_at"`
}

// StateStore keeps pending OAuth flows in redis, keyed by an opaque token.
type StateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStateStore creates a state store over an existing redis client.
func NewStateStore(rdb *redis.Client) *StateStore {
	return &StateStore{rdb: rdb, ttl: stateTTL}
}

func stateKey(token string) string {
	return "oauth:state:" + token
}

// Begin stores a pending flow and returns the opaque token to embed in the
// provider redirect URL.
func (s *StateStore) Begin(ctx context.Context, flow PendingFlow) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	token := hex.EncodeToString(buf)

	flow.StartedAt = time.Now()
	payload, err := json.Marshal(flow)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, stateKey(token), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return token, nil
}

// Consume atomically fetches and deletes a pending flow. A token can be
// consumed exactly once; replays get ErrStateNotFound.
func (s *StateStore) Consume(ctx context.Context, token string) (*PendingFlow, error) {
	payload, err := s.rdb.GetDel(ctx, stateKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth state: %w", err)
	}

	var flow PendingFlow
	if err := json.Unmarshal(payload, &flow); err != nil {
		return nil, fmt.Errorf("corrupt oauth state payload: %w", err)
	}
	return &flow, nil
}
