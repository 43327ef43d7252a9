package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteText writes contents to path, creating parent directories.
func WriteText(t testing.TB, path, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadText returns the contents of path, failing the test when it is missing.
func ReadText(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// SampleSRT is a short three-cue subtitle with mild and strong language.
const SampleSRT = `1
00:00:01,000 --> 00:00:02,500
Where the hell were you?

2
00:00:03,000 --> 00:00:05,000
Traffic was a fucking nightmare.

3
00:00:06,000 --> 00:00:07,000
Well, you're here now.
`
