package stt

import "testing"

func TestModelForLanguage(t *testing.T) {
	cases := []struct {
		language string
		want     string
	}{
		{"en-US", "nova-3"},
		{"en-GB", "nova-3"},
		{"es-ES", "nova-2"},
		{"hi-IN", "nova-2"},
		{"", "nova-2"},
	}
	for _, tc := range cases {
		if got := modelForLanguage(tc.language); got != tc.want {
			t.Fatalf("modelForLanguage(%q) = %q, want %q", tc.language, got, tc.want)
		}
	}
}

func TestLanguageCodeDefault(t *testing.T) {
	if got := languageCode(""); got != "en-US" {
		t.Fatalf("languageCode(\"\") = %q, want en-US", got)
	}
	if got := languageCode("tr-TR"); got != "tr-TR" {
		t.Fatalf("languageCode(tr-TR) = %q, want passthrough", got)
	}
}
