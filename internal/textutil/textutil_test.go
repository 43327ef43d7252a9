package textutil

import (
	"math"
	"testing"
)

func TestSanitizeKey(t *testing.T) {
	tests := map[string]string{
		"The Office":         "The_Office",
		"Amélie (2001)":      "Am_lie__2001_",
		"  ":                 "unknown",
		"s01e02":             "s01e02",
		"What/If?":           "What_If_",
		"Spider-Man: No Way": "Spider_Man__No_Way",
	}
	for input, want := range tests {
		if got := SanitizeKey(input); got != want {
			t.Errorf("SanitizeKey(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(` a/b:c?"d" `); got != "a-b-cd" {
		t.Fatalf("SanitizeFileName = %q", got)
	}
}

func TestFold(t *testing.T) {
	if got := Fold("Amélie Poulain"); got != "Amelie Poulain" {
		t.Fatalf("Fold = %q", got)
	}
	if got := Fold("plain"); got != "plain" {
		t.Fatalf("Fold changed ascii input: %q", got)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"alpha", "alpha.2019", 5},
		{"naïve", "naive", 1},
	}
	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q,%q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarityIsCaseInsensitive(t *testing.T) {
	if got := Similarity("ALPHA", "alpha"); got != 1 {
		t.Fatalf("expected identical, got %v", got)
	}
	if got := Similarity("alpha", "alpha.2019"); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := Similarity("", ""); got != 1 {
		t.Fatalf("expected empty strings identical, got %v", got)
	}
}

func TestMarkerHelpers(t *testing.T) {
	marked := "what the " + Mark("hell") + " is " + Mark("damn thing")

	if !HasMarkers(marked) {
		t.Fatal("expected markers")
	}
	if got := StripMarkers(marked); got != "what the hell is damn thing" {
		t.Fatalf("StripMarkers = %q", got)
	}
	spans := MarkedSpans(marked)
	if len(spans) != 2 || spans[0] != "hell" || spans[1] != "damn thing" {
		t.Fatalf("MarkedSpans = %q", spans)
	}
	if got := MaskMarked(marked, '*'); got != "what the **** is **** *****" {
		t.Fatalf("MaskMarked = %q", got)
	}
}

func TestMarkerHelpersTolerateUnbalanced(t *testing.T) {
	broken := "open " + string(MarkerOpen) + "never closed"
	if spans := MarkedSpans(broken); len(spans) != 0 {
		t.Fatalf("expected no spans, got %q", spans)
	}
	if got := MaskMarked(broken, '*'); got != "open never closed" {
		t.Fatalf("MaskMarked = %q", got)
	}
	stray := "x" + string(MarkerClose) + "y"
	if got := MaskMarked(stray, '*'); got != "xy" {
		t.Fatalf("expected stray close dropped, got %q", got)
	}
}
