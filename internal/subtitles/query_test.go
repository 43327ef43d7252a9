package subtitles

import (
	"reflect"
	"testing"
)

func TestQueryVariationsMovie(t *testing.T) {
	got := QueryVariations(QueryInput{Title: "The Amélie Show!", Year: 2001})
	want := []string{
		"the.amélie.show!",
		"amelie show",
		"the amélie show!",
		"the.amélie.show!.2001",
		"amelie show 2001",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("QueryVariations = %q, want %q", got, want)
	}
}

func TestQueryVariationsDeduplicates(t *testing.T) {
	got := QueryVariations(QueryInput{Title: "Alpha"})
	want := []string{"alpha"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("QueryVariations = %q, want %q", got, want)
	}
}

func TestQueryVariationsEpisode(t *testing.T) {
	got := QueryVariations(QueryInput{Title: "The Office", Year: 2005, Season: 2, Episode: 3})
	want := []string{
		"the.office.s02e03",
		"office s02e03",
		"the office s02e03",
		"office 2005 s02e03",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("QueryVariations = %q, want %q", got, want)
	}
}

func TestQueryVariationsEmptyTitle(t *testing.T) {
	if got := QueryVariations(QueryInput{Title: "   "}); len(got) != 0 {
		t.Fatalf("expected no variations, got %q", got)
	}
}

func TestRelaxedVariations(t *testing.T) {
	movie := RelaxedVariations(QueryInput{Title: "Spider-Man: No Way Home"})
	if !reflect.DeepEqual(movie, []string{"spiderman.no.way.home", "spiderman no way home"}) {
		t.Fatalf("movie relaxed = %q", movie)
	}
	episode := RelaxedVariations(QueryInput{Title: "The Office", Season: 1, Episode: 2})
	want := []string{"the.office.s01e02", "the office s01e02", "office s01e02"}
	if !reflect.DeepEqual(episode, want) {
		t.Fatalf("episode relaxed = %q, want %q", episode, want)
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := map[string]string{
		"The Matrix":       "matrix",
		"A  Quiet   Place": "quiet place",
		"An American Tail": "american tail",
		"Theory":           "theory",
		"Crème Brûlée!":    "creme brulee",
		"The":              "the",
	}
	for input, want := range tests {
		if got := NormalizeTitle(input); got != want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", input, got, want)
		}
	}
}
