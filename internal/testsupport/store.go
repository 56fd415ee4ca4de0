package testsupport

import (
	"testing"

	"imgsync/internal/config"
	"imgsync/internal/ledger"
)

// MustOpenLedger opens the history ledger configured in cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
