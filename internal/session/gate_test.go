package session

import (
	"testing"
	"time"

	"github.com/fieldsync/fieldsync/internal/db"
	"github.com/fieldsync/fieldsync/internal/store"
)

func setupGate(t *testing.T, window time.Duration) *Gate {
	t.Helper()
	database, err := db.OpenAndMigrate(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewGate(store.NewKV(database.DB), window)
}

// TestFreshDeviceRefused verifies the gate denies before any online login.
func TestFreshDeviceRefused(t *testing.T) {
	gate := setupGate(t, 0)

	if gate.CanUseOffline("farmer@example.com") {
		t.Error("fresh device must refuse offline use")
	}
	if gate.CanUseOffline("") {
		t.Error("empty hint must refuse offline use")
	}
}

// TestSaveThenPermit verifies one successful save flips the gate.
func TestSaveThenPermit(t *testing.T) {
	gate := setupGate(t, 0)

	if err := gate.SaveOfflineSession("p-1", "farmer@example.com", time.Now()); err != nil {
		t.Fatalf("SaveOfflineSession failed: %v", err)
	}

	if !gate.CanUseOffline("p-1") {
		t.Error("gate refused a recorded principal id")
	}
	if !gate.CanUseOffline("farmer@example.com") {
		t.Error("gate refused a recorded email")
	}
	if !gate.CanUseOffline("FARMER@example.com") {
		t.Error("email match should be case-insensitive")
	}
	if gate.CanUseOffline("stranger@example.com") {
		t.Error("gate permitted an unknown principal")
	}
}

// TestValidityWindow verifies the optional hardening window.
func TestValidityWindow(t *testing.T) {
	gate := setupGate(t, 24*time.Hour)

	stale := time.Now().Add(-48 * time.Hour)
	if err := gate.SaveOfflineSession("p-stale", "", stale); err != nil {
		t.Fatalf("SaveOfflineSession failed: %v", err)
	}
	if gate.CanUseOffline("p-stale") {
		t.Error("gate permitted a session outside the validity window")
	}

	if err := gate.SaveOfflineSession("p-fresh", "", time.Now()); err != nil {
		t.Fatalf("SaveOfflineSession failed: %v", err)
	}
	if !gate.CanUseOffline("p-fresh") {
		t.Error("gate refused a session inside the validity window")
	}
}

// TestSaveOverwrites verifies a later login refreshes the record.
func TestSaveOverwrites(t *testing.T) {
	gate := setupGate(t, 24*time.Hour)

	if err := gate.SaveOfflineSession("p-1", "old@example.com", time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatalf("SaveOfflineSession failed: %v", err)
	}
	if err := gate.SaveOfflineSession("p-1", "new@example.com", time.Now()); err != nil {
		t.Fatalf("second SaveOfflineSession failed: %v", err)
	}

	if !gate.CanUseOffline("p-1") {
		t.Error("refreshed session refused")
	}
	rec, ok := gate.Lookup("new@example.com")
	if !ok || rec.PrincipalID != "p-1" {
		t.Errorf("Lookup by new email = %+v, ok = %v", rec, ok)
	}
	if _, ok := gate.Lookup("old@example.com"); ok {
		t.Error("stale email still resolves after overwrite")
	}
}

// TestForget verifies logout-and-forget removes the record.
func TestForget(t *testing.T) {
	gate := setupGate(t, 0)

	if err := gate.SaveOfflineSession("p-1", "farmer@example.com", time.Now()); err != nil {
		t.Fatalf("SaveOfflineSession failed: %v", err)
	}
	if err := gate.Forget("p-1"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}

	if gate.CanUseOffline("p-1") {
		t.Error("gate permitted a forgotten principal")
	}

	// Forgetting an unknown principal is a no-op.
	if err := gate.Forget("p-unknown"); err != nil {
		t.Errorf("Forget of unknown principal errored: %v", err)
	}
}

// TestRecordSurvivesReopen verifies the gate decision persists across
// restart, since that is the whole point of the record.
func TestRecordSurvivesReopen(t *testing.T) {
	dataDir := t.TempDir()
	database, err := db.OpenAndMigrate(dataDir)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	gate := NewGate(store.NewKV(database.DB), 0)
	if err := gate.SaveOfflineSession("p-1", "farmer@example.com", time.Now()); err != nil {
		t.Fatalf("SaveOfflineSession failed: %v", err)
	}
	database.Close()

	database, err = db.OpenAndMigrate(dataDir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer database.Close()

	gate = NewGate(store.NewKV(database.DB), 0)
	if !gate.CanUseOffline("p-1") {
		t.Error("session record lost across reopen")
	}
}
