package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"feeledger/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers; restores run inside one transaction.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx runs fn in a transaction and commits only if fn returns nil.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Store("begin transaction", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return core.Store("commit transaction", err)
	}
	return nil
}

func notFoundOr(err error, entity, id, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(entity, id)
	}
	return core.Store(op, err)
}

// ---- tenants ----

func (r *SQLiteRepository) CreateTenant(ctx context.Context, t core.Tenant) error {
	if err := r.queries.CreateTenant(ctx, t); err != nil {
		return core.Store("create tenant", err)
	}
	return nil
}

func (r *SQLiteRepository) GetTenant(ctx context.Context, id string) (core.Tenant, error) {
	t, err := r.queries.GetTenant(ctx, id)
	if err != nil {
		return core.Tenant{}, notFoundOr(err, "tenant", id, "get tenant")
	}
	return t, nil
}

// ---- groups and members ----

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group) error {
	if err := r.queries.CreateGroup(ctx, g); err != nil {
		return core.Store("create group", err)
	}
	return nil
}

// GetGroup returns NotFound for ids owned by another tenant.
func (r *SQLiteRepository) GetGroup(ctx context.Context, tenantID, id string) (core.Group, error) {
	g, err := r.queries.GetGroup(ctx, tenantID, id)
	if err != nil {
		return core.Group{}, notFoundOr(err, "group", id, "get group")
	}
	return g, nil
}

func (r *SQLiteRepository) ListGroups(ctx context.Context, tenantID string) ([]core.Group, error) {
	groups, err := r.queries.ListGroups(ctx, tenantID)
	if err != nil {
		return nil, core.Store("list groups", err)
	}
	return groups, nil
}

func (r *SQLiteRepository) CreateMember(ctx context.Context, m core.Member) error {
	if err := r.queries.CreateMember(ctx, m); err != nil {
		return core.Store("create member", err)
	}
	return nil
}

func (r *SQLiteRepository) GetMember(ctx context.Context, tenantID, id string) (core.Member, error) {
	m, err := r.queries.GetMember(ctx, tenantID, id)
	if err != nil {
		return core.Member{}, notFoundOr(err, "member", id, "get member")
	}
	return m, nil
}

// ListMembers lists a tenant's members, narrowed to one group when groupID is set.
func (r *SQLiteRepository) ListMembers(ctx context.Context, tenantID, groupID string) ([]core.Member, error) {
	members, err := r.queries.ListMembers(ctx, tenantID, groupID, core.DateRange{})
	if err != nil {
		return nil, core.Store("list members", err)
	}
	return members, nil
}

// ListMembersCreatedIn filters members on created_at.
func (r *SQLiteRepository) ListMembersCreatedIn(ctx context.Context, tenantID string, rng core.DateRange) ([]core.Member, error) {
	members, err := r.queries.ListMembers(ctx, tenantID, "", rng)
	if err != nil {
		return nil, core.Store("list members", err)
	}
	return members, nil
}

// ---- users ----

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	if err := r.queries.CreateUser(ctx, u); err != nil {
		return core.Store("create user", err)
	}
	return nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context, tenantID string) ([]core.User, error) {
	users, err := r.queries.ListUsers(ctx, tenantID)
	if err != nil {
		return nil, core.Store("list users", err)
	}
	return users, nil
}

func (r *SQLiteRepository) ListUserFavoriteGroups(ctx context.Context, tenantID string) ([]core.UserFavoriteGroup, error) {
	favs, err := r.queries.ListUserFavoriteGroups(ctx, tenantID)
	if err != nil {
		return nil, core.Store("list user favorite groups", err)
	}
	return favs, nil
}

// ---- structures ----

func (r *SQLiteRepository) CreateStructure(ctx context.Context, s core.Structure) error {
	if err := r.queries.CreateStructure(ctx, s); err != nil {
		return core.Store("create structure", err)
	}
	return nil
}

func (r *SQLiteRepository) ListStructures(ctx context.Context, tenantID string, st core.StructureType) ([]core.Structure, error) {
	items, err := r.queries.ListStructures(ctx, tenantID, st)
	if err != nil {
		return nil, core.Store("list structures", err)
	}
	return items, nil
}

// ---- finance records ----

func (r *SQLiteRepository) CreateFinanceRecord(ctx context.Context, rec core.FinanceRecord) error {
	if err := r.queries.CreateFinanceRecord(ctx, rec); err != nil {
		return core.Store("create finance record", err)
	}
	slog.DebugContext(ctx, "Finance record saved",
		"id", rec.ID,
		"tenant_id", rec.TenantID,
		"member_id", rec.MemberID,
		"amount_paid", rec.AmountPaid.String())
	return nil
}

func (r *SQLiteRepository) GetFinanceRecord(ctx context.Context, tenantID, id string) (core.FinanceRecord, error) {
	rec, err := r.queries.GetFinanceRecord(ctx, tenantID, id)
	if err != nil {
		return core.FinanceRecord{}, notFoundOr(err, "finance record", id, "get finance record")
	}
	return rec, nil
}

// UpdateFinanceRecord overwrites the stored row with rec. The caller merges partial fields.
func (r *SQLiteRepository) UpdateFinanceRecord(ctx context.Context, rec core.FinanceRecord) error {
	n, err := r.queries.UpdateFinanceRecord(ctx, rec)
	if err != nil {
		return core.Store("update finance record", err)
	}
	if n == 0 {
		return core.NotFound("finance record", rec.ID)
	}
	return nil
}

// ListFinanceRecords returns matching records newest first.
func (r *SQLiteRepository) ListFinanceRecords(ctx context.Context, tenantID string, f core.FinanceRecordFilter) ([]core.FinanceRecord, error) {
	items, err := r.queries.ListFinanceRecords(ctx, tenantID, f, core.DateRange{})
	if err != nil {
		return nil, core.Store("list finance records", err)
	}
	return items, nil
}

// ListFinanceRecordsCreatedIn filters records on created_at.
func (r *SQLiteRepository) ListFinanceRecordsCreatedIn(ctx context.Context, tenantID string, rng core.DateRange) ([]core.FinanceRecord, error) {
	items, err := r.queries.ListFinanceRecords(ctx, tenantID, core.FinanceRecordFilter{}, rng)
	if err != nil {
		return nil, core.Store("list finance records", err)
	}
	return items, nil
}

// ---- attendance ----

func (r *SQLiteRepository) CreateAttendance(ctx context.Context, a core.Attendance) error {
	if err := r.queries.CreateAttendance(ctx, a); err != nil {
		return core.Store("create attendance", err)
	}
	return nil
}

// ListAttendance filters on the attendance date.
func (r *SQLiteRepository) ListAttendance(ctx context.Context, tenantID string, rng core.DateRange) ([]core.Attendance, error) {
	items, err := r.queries.ListAttendance(ctx, tenantID, rng)
	if err != nil {
		return nil, core.Store("list attendance", err)
	}
	return items, nil
}

func (r *SQLiteRepository) ListAttendanceRecords(ctx context.Context, tenantID string) ([]core.AttendanceRecord, error) {
	items, err := r.queries.ListAttendanceRecords(ctx, tenantID, core.DateRange{})
	if err != nil {
		return nil, core.Store("list attendance records", err)
	}
	return items, nil
}
