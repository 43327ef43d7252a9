package language

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{" EN ", "en"},
		{"eng", "en"},
		{"English", "en"},
		{"fre", "fr"},
		{"ger", "de"},
		{"dut", "nl"},
		// Regional variants the index distinguishes
		{"pt", "pt-pt"},
		{"por", "pt-pt"},
		{"pt-BR", "pt-br"},
		{"pt_br", "pt-br"},
		{"brazilian", "pt-br"},
		{"zh", "zh-cn"},
		{"chi", "zh-cn"},
		{"zh-TW", "zh-tw"},
		// Unknown but well-formed codes pass through
		{"xy", "xy"},
		{"en-GB", "en-gb"},
		// Unusable
		{"xyz", ""},
		{"e1", ""},
		{"en-", ""},
		{"klingon", ""},
		{"", ""},
		{" ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"pt", "pt-br", true},
		{"en", "eng", true},
		{"zh-tw", "zh", true},
		{"en", "fr", false},
		{"", "en", false},
		{"xyz", "xyz", false},
	}
	for _, tt := range tests {
		if got := Matches(tt.a, tt.b); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "English"},
		{"pt-br", "Portuguese (Brazil)"},
		{"ger", "German"},
		{"xy", "XY"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.expected {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{" EN ", "eng", "spa", "klingon", "", "pt_BR", "es"})
	if joined := strings.Join(got, ","); joined != "en,es,pt-br" {
		t.Fatalf("NormalizeList = %q", joined)
	}
	if got := NormalizeList(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}
