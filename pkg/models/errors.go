package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrConversationNotFound is returned when a conversation id does not
// resolve to a stored conversation.
var ErrConversationNotFound = errors.New("conversation not found")

// ValidationError rejects a request before any network call is attempted:
// bad media size/type/extension, bad identifier format, missing field.
// Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// UnresolvableIdentifierError means a LID could not be mapped to the phone
// number a provider requires. Retrying without new mapping data cannot
// succeed, so callers must not retry automatically.
type UnresolvableIdentifierError struct {
	Identifier string
}

func (e *UnresolvableIdentifierError) Error() string {
	return fmt.Sprintf("unresolvable identifier: no phone mapping for %q", e.Identifier)
}

// TransportError is any provider-level failure: non-2xx response, connection
// error, timeout, malformed response. Body carries the raw provider payload
// for operator diagnostics. The core performs zero automatic retries.
type TransportError struct {
	Channel    ChannelType
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s transport error: status %d: %s", e.Channel, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s transport error: %v", e.Channel, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError means the provider accepted the message but the local
// record could not be written. It must stay distinguishable from a send
// failure so operators do not resend a message the recipient already has.
type PersistenceError struct {
	ConversationID uuid.UUID
	ExternalID     string
	Err            error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("message sent but not recorded (conversation=%s provider_id=%s): %v",
		e.ConversationID, e.ExternalID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigurationError means a credential set failed provider validation at
// save time. The whole save transaction is aborted.
type ConfigurationError struct {
	Channel ChannelType
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s credentials: %s", e.Channel, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// UnsupportedChannelError is returned for a channel type outside the known
// enum.
type UnsupportedChannelError struct {
	Value string
}

func (e *UnsupportedChannelError) Error() string {
	return fmt.Sprintf("unsupported channel: %q", e.Value)
}

// UnsupportedOperationError is returned when a provider variant does not
// implement one of the capability methods (e.g. group creation on Teams).
type UnsupportedOperationError struct {
	Channel   ChannelType
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Channel, e.Operation)
}
