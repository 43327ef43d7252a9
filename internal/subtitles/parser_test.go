package subtitles

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"muteguard/internal/textutil"
)

func TestParseSample(t *testing.T) {
	parsed := Parse([]byte(sampleSRT))
	if len(parsed.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", parsed.Warnings)
	}
	if parsed.Text != "Hello there. What the hell is going on? Nothing at all." {
		t.Fatalf("Text = %q", parsed.Text)
	}
	if len(parsed.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(parsed.Entries))
	}
	second := parsed.Entries[1]
	if second.Index != 2 || second.Start != 3*time.Second || second.End != 4*time.Second {
		t.Fatalf("unexpected timing %+v", second)
	}
	if second.OriginalText != "What the hell\nis going on?" {
		t.Fatalf("OriginalText = %q", second.OriginalText)
	}
	if parsed.Entries[0].End != 2500*time.Millisecond {
		t.Fatalf("expected millisecond precision, got %v", parsed.Entries[0].End)
	}
	if parsed.WordCount() != 11 {
		t.Fatalf("WordCount = %d", parsed.WordCount())
	}
}

func TestParseToleratesMalformedLines(t *testing.T) {
	input := "1\r\n00:00:01,000 --> 00:00:02,000\r\nGood line\r\n\r\n" +
		"2\r\n00:00:xx,000 --> 00:00:04,000\r\nBad timing\r\n\r\n" +
		"3\r\n00:00:09,000 --> 00:00:05,000\r\nBackwards\r\n\r\n" +
		"4\r\n00:00:10,000 --> 00:00:11,000\r\n<b>unclosed <i>tag\r\n"
	parsed := Parse([]byte(input))

	if len(parsed.Entries) != 2 {
		t.Fatalf("expected 2 timed entries, got %d: %+v", len(parsed.Entries), parsed.Entries)
	}
	if parsed.Entries[1].OriginalText != "unclosed tag" {
		t.Fatalf("markup not stripped: %q", parsed.Entries[1].OriginalText)
	}
	if len(parsed.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", parsed.Warnings)
	}
	if !strings.Contains(parsed.Text, "Bad timing") || !strings.Contains(parsed.Text, "Backwards") {
		t.Fatalf("dialogue from untimed blocks should stay in Text: %q", parsed.Text)
	}
}

func TestParseStripsSentinelsFromSource(t *testing.T) {
	input := "1\n00:00:01,000 --> 00:00:02,000\nodd" + string(textutil.MarkerOpen) + "text" + string(textutil.MarkerClose) + "\n"
	parsed := Parse([]byte(input))
	if len(parsed.Entries) != 1 || parsed.Entries[0].OriginalText != "oddtext" {
		t.Fatalf("expected sentinels removed, got %+v", parsed.Entries)
	}
}

func TestStripMarkup(t *testing.T) {
	tests := map[string]string{
		"<i>Hi</i>":                      "Hi",
		"{\\an8}Top":                     "Top",
		"<font color=\"red\">x</font> y": "x y",
		"a < b":                          "a < b",
		"{unclosed":                      "{unclosed",
	}
	for input, want := range tests {
		if got := stripMarkup(input); got != want {
			t.Errorf("stripMarkup(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	parsed := Parse([]byte(sampleSRT))
	annotated := make([]DialogueEntry, len(parsed.Entries))
	copy(annotated, parsed.Entries)
	annotated[1].MarkedText = "What the " + textutil.Mark("hell") + "\nis going on?"

	data := FormatArtifact(annotated)
	entries, warnings := ParseArtifact(data, 0)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %v", warnings)
	}
	if len(entries) != len(parsed.Entries) {
		t.Fatalf("entry count %d != %d", len(entries), len(parsed.Entries))
	}
	for i, entry := range entries {
		if textutil.StripMarkers(entry.MarkedText) != parsed.Entries[i].OriginalText {
			t.Fatalf("entry %d did not round-trip: %q", i, entry.MarkedText)
		}
		if entry.OriginalText != parsed.Entries[i].OriginalText {
			t.Fatalf("entry %d original mismatch: %q", i, entry.OriginalText)
		}
		if entry.Start != parsed.Entries[i].Start || entry.End != parsed.Entries[i].End {
			t.Fatalf("entry %d timing mismatch", i)
		}
	}
	flagged := entries[1]
	if !flagged.HasProfanity || !reflect.DeepEqual(flagged.DetectedWords, []string{"hell"}) {
		t.Fatalf("unexpected detection %+v", flagged)
	}
	if flagged.FilteredText != "What the ****\nis going on?" {
		t.Fatalf("FilteredText = %q", flagged.FilteredText)
	}
	if entries[0].HasProfanity {
		t.Fatal("clean entry flagged")
	}
}

func TestFormatSRTTimestamp(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond
	if got := formatSRTTimestamp(d); got != "01:02:03,045" {
		t.Fatalf("formatSRTTimestamp = %q", got)
	}
	back, err := parseSRTTimestamp("01:02:03.045")
	if err != nil || back != d {
		t.Fatalf("parseSRTTimestamp = %v, %v", back, err)
	}
}
