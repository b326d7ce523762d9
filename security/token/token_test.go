package token

import (
	"strings"
	"testing"
)

func TestNew_GrammarAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		tok, err := New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if !Valid(tok) {
			t.Fatalf("generated token fails grammar: %q", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"too_short", "abc", false},
		{"too_long", strings.Repeat("a", EncodedLen+1), false},
		{"exact_ok", strings.Repeat("a", EncodedLen), true},
		{"url_safe_alphabet", "AZaz09-_AZaz09-_AZaz09", true},
		{"padding_rejected", strings.Repeat("a", EncodedLen-1) + "=", false},
		{"plus_rejected", strings.Repeat("a", EncodedLen-1) + "+", false},
		{"space_rejected", strings.Repeat("a", EncodedLen-1) + " ", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Valid(tc.in); got != tc.want {
				t.Fatalf("Valid(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestHashForStorage_SHAFallback(t *testing.T) {
	t.Setenv(HMACEnvKey, "")

	h := HashForStorage("some-token")
	if len(h) != 64 {
		t.Fatalf("digest length = %d, want 64", len(h))
	}
	if h != HashSHA256Hex("some-token") {
		t.Fatalf("expected SHA-256 fallback when no HMAC key is set")
	}
}

func TestHashForStorage_HMACMode(t *testing.T) {
	t.Setenv(HMACEnvKey, strings.Repeat("k", 32))

	h := HashForStorage("some-token")
	if h == HashSHA256Hex("some-token") {
		t.Fatalf("expected HMAC digest when key is set")
	}
	if len(h) != 64 {
		t.Fatalf("digest length = %d, want 64", len(h))
	}
}

func TestHashForStorageRequireHMAC(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HashForStorageRequireHMAC("tok", 32); err == nil {
		t.Fatalf("expected error with no key")
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HashForStorageRequireHMAC("tok", 32); err == nil {
		t.Fatalf("expected error with short key")
	}

	t.Setenv(HMACEnvKey, strings.Repeat("k", 32))
	h, err := HashForStorageRequireHMAC("tok", 32)
	if err != nil {
		t.Fatalf("HashForStorageRequireHMAC: %v", err)
	}
	if len(h) != 64 {
		t.Fatalf("digest length = %d, want 64", len(h))
	}
}
