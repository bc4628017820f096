package identity

import (
	"context"
	"errors"
	"testing"

	"omnigate/pkg/models"
)

type fakeLIDStore struct {
	mappings map[string]string
	err      error
}

func (f *fakeLIDStore) PhoneForLID(ctx context.Context, lid string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.mappings[lid], nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
	}{
		{"11999998888", KindPhone},
		{"+55 (11) 99999-8888", KindPhone},
		{"5511999998888@s.whatsapp.net", KindPhone},
		{"5511999998888@c.us", KindPhone},
		{"123456789012345@lid", KindLID},
		{"19:meeting_abc@thread.v2", KindChatID},
		{"user@example", KindChatID},
	}

	for _, test := range tests {
		if got := Classify(test.input); got != test.expected {
			t.Errorf("Classify(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	r := NewResolver(&fakeLIDStore{})

	tests := []struct {
		input    string
		expected string
	}{
		{"11999998888", "5511999998888"},       // 11 digits, no country code
		{"1199999888", "551199999888"},         // 10 digits
		{"5511999998888", "5511999998888"},     // already prefixed
		{"15551234567", "5515551234567"},       // 11 digits not starting with 55
		{"545511999998888", "545511999998888"}, // >=12 digits left alone
		{"(11) 99999-8888", "5511999998888"},
		{"5511999998888@c.us", "5511999998888"},
	}

	for _, test := range tests {
		got, err := r.Normalize(test.input)
		if err != nil {
			t.Errorf("Normalize(%q) error: %v", test.input, err)
			continue
		}
		if got.Kind != KindPhone {
			t.Errorf("Normalize(%q) kind = %q, expected phone", test.input, got.Kind)
		}
		if got.Value != test.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", test.input, got.Value, test.expected)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	r := NewResolver(&fakeLIDStore{})

	inputs := []string{"5511999998888", "11999998888", "545511999998888"}
	for _, input := range inputs {
		once, err := r.Normalize(input)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", input, err)
		}
		twice, err := r.Normalize(once.Value)
		if err != nil {
			t.Fatalf("Normalize(Normalize(%q)) error: %v", input, err)
		}
		if once.Value != twice.Value {
			t.Errorf("Normalize not idempotent for %q: %q != %q", input, once.Value, twice.Value)
		}
	}
}

func TestNormalizeRejectsShortNumbers(t *testing.T) {
	r := NewResolver(&fakeLIDStore{})

	for _, input := range []string{"12345", "999", "(11) 9999"} {
		_, err := r.Normalize(input)
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Normalize(%q) error = %v, expected ValidationError", input, err)
		}
	}
}

func TestNormalizeLID(t *testing.T) {
	r := NewResolver(&fakeLIDStore{})

	got, err := r.Normalize("123456789012345@lid")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if got.Kind != KindLID || got.Value != "123456789012345" {
		t.Errorf("Normalize(lid) = %+v", got)
	}
}

func TestToProviderFormat(t *testing.T) {
	store := &fakeLIDStore{mappings: map[string]string{"987654321": "5511999998888"}}
	r := NewResolver(store)
	ctx := context.Background()

	phoneOnly := ProviderCapabilities{AcceptsLID: false, PhoneSuffix: "@s.whatsapp.net"}
	lidCapable := ProviderCapabilities{AcceptsLID: true, PhoneSuffix: "@s.whatsapp.net"}

	t.Run("phone gets provider suffix", func(t *testing.T) {
		got, err := r.ToProviderFormat(ctx, CanonicalID{Kind: KindPhone, Value: "5511999998888"}, phoneOnly)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "5511999998888@s.whatsapp.net" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("lid passes through when provider accepts it", func(t *testing.T) {
		got, err := r.ToProviderFormat(ctx, CanonicalID{Kind: KindLID, Value: "987654321"}, lidCapable)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "987654321@lid" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("lid resolves to phone when provider requires one", func(t *testing.T) {
		got, err := r.ToProviderFormat(ctx, CanonicalID{Kind: KindLID, Value: "987654321"}, phoneOnly)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "5511999998888@s.whatsapp.net" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unmapped lid is unresolvable", func(t *testing.T) {
		_, err := r.ToProviderFormat(ctx, CanonicalID{Kind: KindLID, Value: "000000"}, phoneOnly)
		var uerr *models.UnresolvableIdentifierError
		if !errors.As(err, &uerr) {
			t.Fatalf("error = %v, expected UnresolvableIdentifierError", err)
		}
	})

	t.Run("chat id passes through unchanged", func(t *testing.T) {
		got, err := r.ToProviderFormat(ctx, CanonicalID{Kind: KindChatID, Value: "19:meeting_abc@thread.v2"}, phoneOnly)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "19:meeting_abc@thread.v2" {
			t.Errorf("got %q", got)
		}
	})
}
