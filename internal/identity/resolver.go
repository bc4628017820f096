// Package identity normalizes and classifies the heterogeneous destination
// identifiers the channels use: phone numbers, opaque provider-assigned LIDs
// and provider-specific chat ids.
package identity

import (
	"context"
	"strings"

	"omnigate/pkg/models"
)

// Kind classifies an identifier.
type Kind string

const (
	KindPhone  Kind = "phone"
	KindLID    Kind = "lid"
	KindChatID Kind = "chat_id"
)

// CanonicalID is the normalized internal form of a destination identifier.
type CanonicalID struct {
	Kind  Kind
	Value string
}

// ProviderCapabilities declares what identifier shapes a provider accepts.
type ProviderCapabilities struct {
	// AcceptsLID is true for providers that can address an opaque LID
	// natively (Baileys-backed gateways). REST-only providers need a phone.
	AcceptsLID bool
	// PhoneSuffix is appended to a bare phone number when the provider
	// expects a JID-style address, e.g. "@s.whatsapp.net".
	PhoneSuffix string
}

// LIDStore resolves an opaque LID to a phone number. Mappings are written by
// inbound webhook processing; a missing mapping returns ("", nil).
type LIDStore interface {
	PhoneForLID(ctx context.Context, lid string) (string, error)
}

// Resolver normalizes destination identifiers and converts them to the
// representation a target provider requires.
type Resolver struct {
	lids LIDStore
}

// NewResolver creates a resolver backed by the given LID mapping store.
func NewResolver(lids LIDStore) *Resolver {
	return &Resolver{lids: lids}
}

const (
	lidSuffix      = "@lid"
	waUserSuffix   = "@s.whatsapp.net"
	waLegacySuffix = "@c.us"
)

// Classify determines whether an identifier is a phone number, a LID, or a
// provider-specific chat id.
func Classify(raw string) Kind {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasSuffix(s, lidSuffix):
		return KindLID
	case strings.HasSuffix(s, waUserSuffix), strings.HasSuffix(s, waLegacySuffix):
		return KindPhone
	}
	if digits := stripNonDigits(s); digits != "" && len(digits) == len(strings.Map(dropPhoneFormatting, s)) {
		return KindPhone
	}
	return KindChatID
}

// Normalize converts a raw identifier into canonical form.
//
// Phone numbers are reduced to digits; 10 and 11 digit numbers are assumed
// domestic and get the "55" country code prepended, numbers with 12 or more
// digits are assumed to already carry one. Fewer than 10 digits is rejected
// before any provider is called.
func (r *Resolver) Normalize(raw string) (CanonicalID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return CanonicalID{}, &models.ValidationError{Field: "identifier", Reason: "empty identifier"}
	}

	switch Classify(s) {
	case KindLID:
		return CanonicalID{Kind: KindLID, Value: strings.TrimSuffix(s, lidSuffix)}, nil
	case KindChatID:
		return CanonicalID{Kind: KindChatID, Value: s}, nil
	}

	s = strings.TrimSuffix(strings.TrimSuffix(s, waUserSuffix), waLegacySuffix)
	digits := stripNonDigits(s)
	switch {
	case len(digits) < 10:
		return CanonicalID{}, &models.ValidationError{Field: "identifier", Reason: "phone number has fewer than 10 digits"}
	case len(digits) <= 11 && !strings.HasPrefix(digits, "55"):
		digits = "55" + digits
	}
	return CanonicalID{Kind: KindPhone, Value: digits}, nil
}

// ToProviderFormat converts a canonical identifier into the form the target
// provider accepts. A LID handed to a provider that only takes phone numbers
// is resolved through the mapping store; when no mapping exists the send is
// aborted with an UnresolvableIdentifierError.
func (r *Resolver) ToProviderFormat(ctx context.Context, id CanonicalID, caps ProviderCapabilities) (string, error) {
	switch id.Kind {
	case KindLID:
		if caps.AcceptsLID {
			return id.Value + lidSuffix, nil
		}
		phone, err := r.lids.PhoneForLID(ctx, id.Value)
		if err != nil {
			return "", err
		}
		if phone == "" {
			return "", &models.UnresolvableIdentifierError{Identifier: id.Value}
		}
		return phone + caps.PhoneSuffix, nil
	case KindPhone:
		return id.Value + caps.PhoneSuffix, nil
	default:
		return id.Value, nil
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// dropPhoneFormatting removes characters commonly found in formatted phone
// numbers so purely-numeric identifiers still classify as phones.
func dropPhoneFormatting(r rune) rune {
	switch r {
	case ' ', '-', '+', '(', ')', '.':
		return -1
	}
	return r
}
