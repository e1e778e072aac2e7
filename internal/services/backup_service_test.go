package services

import (
	"context"
	"path/filepath"
	"testing"

	"feeledger/internal/amqp"
	"feeledger/internal/archive"
	"feeledger/internal/core"
	"feeledger/internal/storage"
)

func newBackupService(t *testing.T, pub EventPublisher) *BackupService {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return NewBackupService(archive.NewExporter(repo), archive.NewImporter(archive.SQLiteTx(repo), 0), pub, "")
}

func TestBackupService_ExportValidatesParameters(t *testing.T) {
	svc := newBackupService(t, nil)

	tests := []struct {
		name   string
		tables []string
		rng    string
	}{
		{"unknown table", []string{"payments"}, ""},
		{"unknown range", nil, "hourly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Export(context.Background(), "t1", tt.tables, tt.rng)
			if !core.IsKind(err, core.KindValidation) {
				t.Errorf("Export() error = %v, want validation", err)
			}
		})
	}
}

func TestBackupService_RestorePublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newBackupService(t, pub)
	ctx := context.Background()

	res, err := svc.Export(ctx, "t1", nil, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(res.Tables) != 0 {
		t.Errorf("empty tenant exported tables %v", res.Tables)
	}

	if _, err := svc.Restore(ctx, "t1", res.Data, "erase"); !core.IsKind(err, core.KindValidation) {
		t.Errorf("Restore() with bad mode error = %v, want validation", err)
	}

	sum, err := svc.Restore(ctx, "t1", res.Data, "")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if sum.Mode != archive.ModeAdditive {
		t.Errorf("Mode = %s, want additive", sum.Mode)
	}
	if len(pub.events) != 1 || pub.events[0].Type != amqp.EventRestoreCompleted || pub.events[0].TenantID != "t1" {
		t.Errorf("events = %+v, want one restore.completed for t1", pub.events)
	}
	if svc.MaxArchiveBytes() != archive.DefaultMaxBytes {
		t.Errorf("MaxArchiveBytes() = %d", svc.MaxArchiveBytes())
	}
}
