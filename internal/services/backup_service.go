package services

import (
	"context"
	"log/slog"
	"time"

	"feeledger/internal/amqp"
	"feeledger/internal/archive"
)

// BackupService resolves request parameters for archive export and restore and
// announces completed restores.
type BackupService struct {
	exporter    *archive.Exporter
	importer    *archive.Importer
	publisher   EventPublisher
	defaultMode archive.Mode
	now         func() time.Time
}

func NewBackupService(exporter *archive.Exporter, importer *archive.Importer, publisher EventPublisher, defaultMode archive.Mode) *BackupService {
	if defaultMode == "" {
		defaultMode = archive.ModeAdditive
	}
	return &BackupService{
		exporter:    exporter,
		importer:    importer,
		publisher:   publisher,
		defaultMode: defaultMode,
		now:         time.Now,
	}
}

// MaxArchiveBytes is the restore size ceiling.
func (s *BackupService) MaxArchiveBytes() int64 {
	return s.importer.MaxBytes()
}

// Export builds an archive of the named tables (all when none) for the range preset.
func (s *BackupService) Export(ctx context.Context, tenantID string, tableNames []string, rangeName string) (archive.ExportResult, error) {
	tables, err := archive.ParseTables(tableNames)
	if err != nil {
		return archive.ExportResult{}, err
	}
	preset, err := archive.ParsePreset(rangeName)
	if err != nil {
		return archive.ExportResult{}, err
	}
	return s.exporter.Export(ctx, tenantID, tables, preset.Resolve(s.now()))
}

// Restore imports data into the tenant. An empty modeName uses the configured default.
func (s *BackupService) Restore(ctx context.Context, tenantID string, data []byte, modeName string) (archive.Summary, error) {
	mode := s.defaultMode
	if modeName != "" {
		m, err := archive.ParseMode(modeName)
		if err != nil {
			return archive.Summary{}, err
		}
		mode = m
	}

	sum, err := s.importer.Restore(ctx, tenantID, data, mode)
	if err != nil {
		return archive.Summary{}, err
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping restore event")
		return sum, nil
	}
	inserted := make(map[string]int, len(sum.Inserted))
	for t, n := range sum.Inserted {
		inserted[string(t)] = n
	}
	if err := s.publisher.PublishEvent(ctx, amqp.NewRestoreCompletedEvent(tenantID, inserted)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish restore event", "tenant_id", tenantID, "error", err)
	}
	return sum, nil
}
