package archive

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"feeledger/internal/core"
)

// Reader is the read-only store view an export needs. Every method is tenant scoped.
type Reader interface {
	GetTenant(ctx context.Context, id string) (core.Tenant, error)
	ListUsers(ctx context.Context, tenantID string) ([]core.User, error)
	ListGroups(ctx context.Context, tenantID string) ([]core.Group, error)
	ListMembersCreatedIn(ctx context.Context, tenantID string, r core.DateRange) ([]core.Member, error)
	ListUserFavoriteGroups(ctx context.Context, tenantID string) ([]core.UserFavoriteGroup, error)
	ListStructures(ctx context.Context, tenantID string, st core.StructureType) ([]core.Structure, error)
	ListFinanceRecordsCreatedIn(ctx context.Context, tenantID string, r core.DateRange) ([]core.FinanceRecord, error)
	ListAttendance(ctx context.Context, tenantID string, r core.DateRange) ([]core.Attendance, error)
	ListAttendanceRecords(ctx context.Context, tenantID string) ([]core.AttendanceRecord, error)
}

type Exporter struct {
	reader Reader
}

func NewExporter(reader Reader) *Exporter {
	return &Exporter{reader: reader}
}

// ExportResult is a complete archive plus the row count of each included table.
type ExportResult struct {
	Data   []byte
	Tables map[Table]int
}

// Export reads the requested tables of tenantID in parallel and bundles the
// non-empty ones into one archive. The range applies to dated tables only.
// Any failure discards the whole archive.
func (e *Exporter) Export(ctx context.Context, tenantID string, tables []Table, rng core.DateRange) (ExportResult, error) {
	if tenantID == "" {
		return ExportResult{}, core.Auth("missing tenant")
	}
	if len(tables) == 0 {
		tables = AllTables
	}

	for _, t := range tables {
		if !t.IsValid() {
			return ExportResult{}, core.Validation("tables", "unknown table "+string(t))
		}
	}

	docs := make([][]byte, len(tables))
	counts := make([]int, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tables {
		g.Go(func() error {
			rows, err := e.fetch(gctx, tenantID, t, rng)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", t, err)
			}
			counts[i] = len(rows)
			if len(rows) == 0 {
				return nil
			}
			doc, err := encodeSheet(headerFor(t), rows)
			if err != nil {
				return fmt.Errorf("encode %s: %w", t, err)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExportResult{}, err
	}

	res := ExportResult{Tables: make(map[Table]int)}
	entries := make([]entry, 0, len(tables))
	for i, t := range tables {
		if counts[i] == 0 {
			continue
		}
		res.Tables[t] = counts[i]
		entries = append(entries, entry{name: t.FileName(), data: docs[i]})
	}

	data, err := writeArchive(entries)
	if err != nil {
		return ExportResult{}, err
	}
	res.Data = data

	slog.InfoContext(ctx, "Archive exported",
		"tenant_id", tenantID,
		"tables", len(entries),
		"bytes", len(data))
	return res, nil
}

func (e *Exporter) fetch(ctx context.Context, tenantID string, t Table, rng core.DateRange) ([][]string, error) {
	switch t {
	case TableTenant:
		tenant, err := e.reader.GetTenant(ctx, tenantID)
		if core.IsKind(err, core.KindNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return [][]string{tenantRow(tenant)}, nil
	case TableUsers:
		items, err := e.reader.ListUsers(ctx, tenantID)
		return mapRows(items, userRow), err
	case TableGroups:
		items, err := e.reader.ListGroups(ctx, tenantID)
		return mapRows(items, groupRow), err
	case TableMembers:
		items, err := e.reader.ListMembersCreatedIn(ctx, tenantID, rng)
		return mapRows(items, memberRow), err
	case TableUserFavoriteGroups:
		items, err := e.reader.ListUserFavoriteGroups(ctx, tenantID)
		return mapRows(items, favoriteRow), err
	case TableFeeStructures:
		items, err := e.reader.ListStructures(ctx, tenantID, core.StructureFee)
		return mapRows(items, structureRow), err
	case TableSalaryStructures:
		items, err := e.reader.ListStructures(ctx, tenantID, core.StructureSalary)
		return mapRows(items, structureRow), err
	case TableFinanceRecords:
		items, err := e.reader.ListFinanceRecordsCreatedIn(ctx, tenantID, rng)
		return mapRows(items, financeRow), err
	case TableAttendance:
		items, err := e.reader.ListAttendance(ctx, tenantID, rng)
		return mapRows(items, attendanceRow), err
	case TableAttendanceRecords:
		items, err := e.reader.ListAttendanceRecords(ctx, tenantID)
		return mapRows(items, attendanceRecordRow), err
	}
	return nil, core.Validation("tables", "unknown table "+string(t))
}
