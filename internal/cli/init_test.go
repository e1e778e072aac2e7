package cli

import (
	"path/filepath"
	"testing"
	"time"

	"feeledger/internal/config"
	"feeledger/internal/storage"
)

func TestCalendarFallsBackToDefault(t *testing.T) {
	cal := Calendar(&config.Config{SessionStartMonth: 0})
	if got := cal.YearOf(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)); got != 2024 {
		t.Errorf("default calendar YearOf(March 2025) = %d, want 2024", got)
	}

	cal = Calendar(&config.Config{SessionStartMonth: time.January})
	if got := cal.YearOf(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)); got != 2025 {
		t.Errorf("January calendar YearOf(March 2025) = %d, want 2025", got)
	}
}

func TestNewAppWithoutPublisher(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer repo.Close()

	app := NewApp(&config.Config{
		SessionStartMonth: time.April,
		PaidWindow:        "session",
		RestoreMode:       "bogus",
		MaxArchiveBytes:   4096,
	}, repo, nil)

	if app.Backup.MaxArchiveBytes() != 4096 {
		t.Errorf("MaxArchiveBytes() = %d, want 4096", app.Backup.MaxArchiveBytes())
	}
	if app.Aggregator == nil || app.Directory == nil || app.Finance == nil {
		t.Fatal("services not wired")
	}
}
