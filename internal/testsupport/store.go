package testsupport

import (
	"testing"

	"muteguard/internal/analysis"
	"muteguard/internal/config"
)

// MustOpenStore opens an analysis.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *analysis.Store {
	t.Helper()

	store, err := analysis.Open(cfg)
	if err != nil {
		t.Fatalf("analysis.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
