package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"feeledger/internal/core"
)

// DefaultMaxBytes is the archive size ceiling.
const DefaultMaxBytes int64 = 100 << 20

// maxReportedDefaults caps the field defaults listed in a Summary.
const maxReportedDefaults = 200

// Mode selects whether a restore keeps the tenant's existing rows.
type Mode string

const (
	ModeAdditive Mode = "additive"
	ModeReplace  Mode = "replace"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAdditive, ModeReplace:
		return m, nil
	}
	return "", core.Validation("mode", "mode must be additive or replace")
}

// Writer is the store a restore inserts through. *storage.Queries satisfies it.
type Writer interface {
	DeleteTenantData(ctx context.Context, tenantID string) (int64, error)
	// OwnedIDs lists the ids tenantID already holds in t.
	OwnedIDs(ctx context.Context, tenantID string, t Table) (map[string]bool, error)
	CreateGroup(ctx context.Context, g core.Group) error
	CreateMember(ctx context.Context, m core.Member) error
	CreateUser(ctx context.Context, u core.User) error
	CreateUserFavoriteGroup(ctx context.Context, f core.UserFavoriteGroup) error
	CreateStructure(ctx context.Context, s core.Structure) error
	CreateFinanceRecord(ctx context.Context, r core.FinanceRecord) error
	CreateAttendance(ctx context.Context, a core.Attendance) error
	CreateAttendanceRecord(ctx context.Context, a core.AttendanceRecord) error
}

// Transactor runs fn against a Writer inside one transaction.
type Transactor interface {
	Transact(ctx context.Context, fn func(w Writer) error) error
}

// TxFunc adapts a function to Transactor.
type TxFunc func(ctx context.Context, fn func(w Writer) error) error

func (f TxFunc) Transact(ctx context.Context, fn func(w Writer) error) error {
	return f(ctx, fn)
}

// Summary reports what a restore did.
type Summary struct {
	TenantID        string         `json:"tenantId"`
	Mode            Mode           `json:"mode"`
	Inserted        map[Table]int  `json:"inserted"`
	Skipped         []Table        `json:"skipped"`
	Ignored         []string       `json:"ignored,omitempty"`
	Deleted         int64          `json:"deleted"`
	DefaultsApplied int            `json:"defaultsApplied"`
	Defaults        []FieldDefault `json:"defaults,omitempty"`
}

type Importer struct {
	tx       Transactor
	maxBytes int64
	now      func() time.Time
	newID    func() string
}

// NewImporter returns an importer enforcing maxBytes (DefaultMaxBytes when <= 0).
func NewImporter(tx Transactor, maxBytes int64) *Importer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Importer{
		tx:       tx,
		maxBytes: maxBytes,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (i *Importer) MaxBytes() int64 { return i.maxBytes }

// plan holds every sanitized row of an archive, ready to insert.
type plan struct {
	groups     []core.Group
	members    []core.Member
	users      []core.User
	favorites  []core.UserFavoriteGroup
	fees       []core.Structure
	salaries   []core.Structure
	records    []core.FinanceRecord
	attendance []core.Attendance
	attendRecs []core.AttendanceRecord
}

func (p *plan) count(t Table) int {
	switch t {
	case TableGroups:
		return len(p.groups)
	case TableMembers:
		return len(p.members)
	case TableUsers:
		return len(p.users)
	case TableUserFavoriteGroups:
		return len(p.favorites)
	case TableFeeStructures:
		return len(p.fees)
	case TableSalaryStructures:
		return len(p.salaries)
	case TableFinanceRecords:
		return len(p.records)
	case TableAttendance:
		return len(p.attendance)
	case TableAttendanceRecords:
		return len(p.attendRecs)
	}
	return 0
}

// Restore imports data into tenantID. Every row is rebound to tenantID and
// receives a fresh id; references between restored rows follow the new ids.
// References to rows neither in the archive nor held by tenantID are cleared
// and reported as defaults. Rows are inserted in RestoreOrder inside one transaction, so any failure
// leaves the tenant unchanged.
func (i *Importer) Restore(ctx context.Context, tenantID string, data []byte, mode Mode) (Summary, error) {
	if tenantID == "" {
		return Summary{}, core.Auth("missing tenant")
	}
	if int64(len(data)) > i.maxBytes {
		return Summary{}, core.SizeLimit(i.maxBytes, int64(len(data)))
	}
	if mode == "" {
		mode = ModeAdditive
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return Summary{}, err
	}

	docs, ignored, err := readArchive(data, i.maxBytes)
	if err != nil {
		var tooLarge errDeclaredTooLarge
		if errors.As(err, &tooLarge) {
			return Summary{}, core.SizeLimit(tooLarge.limit, tooLarge.got)
		}
		return Summary{}, &core.Error{Kind: core.KindValidation, Field: "archive", Message: "archive could not be read", Err: err}
	}
	if _, ok := docs[TableTenant]; ok {
		ignored = append(ignored, TableTenant.FileName())
	}

	sum := Summary{
		TenantID: tenantID,
		Mode:     mode,
		Inserted: make(map[Table]int),
		Ignored:  ignored,
	}

	p, defaults, err := i.sanitize(docs)
	if err != nil {
		return Summary{}, err
	}

	err = i.tx.Transact(ctx, func(w Writer) error {
		if mode == ModeReplace {
			n, err := w.DeleteTenantData(ctx, tenantID)
			if err != nil {
				return core.Store("delete tenant data", err)
			}
			sum.Deleted = n
		}

		owned, err := ownedIDs(ctx, w, tenantID)
		if err != nil {
			return core.Store("load tenant ids", err)
		}
		defaults = append(defaults, i.rebind(p, tenantID, owned)...)

		for _, t := range RestoreOrder {
			n := p.count(t)
			if n == 0 {
				sum.Skipped = append(sum.Skipped, t)
				continue
			}
			if err := insertTable(ctx, w, p, t); err != nil {
				return core.Store("restore "+string(t), err)
			}
			sum.Inserted[t] = n
			slog.DebugContext(ctx, "Table restored", "tenant_id", tenantID, "table", t, "rows", n)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	sum.DefaultsApplied = len(defaults)
	if len(defaults) > maxReportedDefaults {
		defaults = defaults[:maxReportedDefaults]
	}
	sum.Defaults = defaults

	slog.InfoContext(ctx, "Archive restored",
		"tenant_id", tenantID,
		"mode", mode,
		"tables", len(sum.Inserted),
		"defaults_applied", sum.DefaultsApplied,
		"deleted", sum.Deleted)
	return sum, nil
}

// sanitize decodes and coerces every table document present in docs. A document
// that cannot be decoded aborts the restore.
func (i *Importer) sanitize(docs map[Table][]byte) (*plan, []FieldDefault, error) {
	p := &plan{}
	var defaults []FieldDefault
	now := i.now()

	for _, t := range RestoreOrder {
		doc, ok := docs[t]
		if !ok {
			continue
		}
		rows, err := decodeSheet(doc)
		if err != nil {
			return nil, nil, &core.Error{Kind: core.KindValidation, Field: string(t), Message: "table " + string(t) + " could not be decoded", Err: err}
		}
		for n, row := range rows {
			// Row numbers match the sheet: header is row 1.
			c := newCells(t, n+2, row, now)
			switch t {
			case TableGroups:
				p.groups = append(p.groups, sanitizeGroup(c))
			case TableMembers:
				p.members = append(p.members, sanitizeMember(c))
			case TableUsers:
				p.users = append(p.users, sanitizeUser(c))
			case TableUserFavoriteGroups:
				p.favorites = append(p.favorites, sanitizeFavorite(c))
			case TableFeeStructures:
				p.fees = append(p.fees, sanitizeStructure(c, core.StructureFee))
			case TableSalaryStructures:
				p.salaries = append(p.salaries, sanitizeStructure(c, core.StructureSalary))
			case TableFinanceRecords:
				p.records = append(p.records, sanitizeFinanceRecord(c))
			case TableAttendance:
				p.attendance = append(p.attendance, sanitizeAttendance(c))
			case TableAttendanceRecords:
				p.attendRecs = append(p.attendRecs, sanitizeAttendanceRecord(c))
			}
			defaults = append(defaults, c.defaults...)
		}
	}
	return p, defaults, nil
}

// idMap maps archive ids to the fresh ids assigned on restore.
type idMap map[string]string

func (m idMap) assign(old string, newID func() string) string {
	id := newID()
	if old != "" {
		m[old] = id
	}
	return id
}

// ownedIDs loads the ids the tenant already holds in every referenced table.
func ownedIDs(ctx context.Context, w Writer, tenantID string) (map[Table]map[string]bool, error) {
	owned := make(map[Table]map[string]bool)
	for _, t := range []Table{TableGroups, TableMembers, TableUsers, TableFeeStructures, TableAttendance} {
		ids, err := w.OwnedIDs(ctx, tenantID, t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		owned[t] = ids
	}
	return owned, nil
}

// resolver follows references from restored rows. A reference must name a row
// of the archive or a row the tenant already holds; anything else is cleared
// and noted as a default.
type resolver struct {
	ids      map[Table]idMap
	owned    map[Table]map[string]bool
	defaults []FieldDefault
}

func (r *resolver) lookup(target Table, old string) (string, bool) {
	if old == "" {
		return "", true
	}
	if id, ok := r.ids[target][old]; ok {
		return id, true
	}
	if r.owned[target][old] {
		return old, true
	}
	return "", false
}

// ref resolves a required reference of row n in table t.
func (r *resolver) ref(t Table, n int, field string, target Table, old string) string {
	id, ok := r.lookup(target, old)
	if !ok {
		r.defaults = append(r.defaults, FieldDefault{Table: t, Row: n + 2, Field: field, Raw: old, Default: ""})
	}
	return id
}

// optRef resolves an optional reference, clearing it when it cannot be followed.
func (r *resolver) optRef(t Table, n int, field string, target Table, old *string) *string {
	if old == nil {
		return nil
	}
	id, ok := r.lookup(target, *old)
	if !ok {
		r.defaults = append(r.defaults, FieldDefault{Table: t, Row: n + 2, Field: field, Raw: *old, Default: "null"})
		return nil
	}
	return &id
}

// rebind overwrites tenant ownership, regenerates every id and resolves
// references against the archive and the tenant's existing rows.
func (i *Importer) rebind(p *plan, tenantID string, owned map[Table]map[string]bool) []FieldDefault {
	groups, members, users, structures, attendance := idMap{}, idMap{}, idMap{}, idMap{}, idMap{}

	for n := range p.groups {
		p.groups[n].ID = groups.assign(p.groups[n].ID, i.newID)
	}
	for n := range p.members {
		p.members[n].ID = members.assign(p.members[n].ID, i.newID)
	}
	for n := range p.users {
		p.users[n].ID = users.assign(p.users[n].ID, i.newID)
	}
	for n := range p.fees {
		p.fees[n].ID = structures.assign(p.fees[n].ID, i.newID)
	}
	for n := range p.salaries {
		p.salaries[n].ID = structures.assign(p.salaries[n].ID, i.newID)
	}
	for n := range p.attendance {
		p.attendance[n].ID = attendance.assign(p.attendance[n].ID, i.newID)
	}

	// Fee and salary structures share one id space.
	r := &resolver{
		ids: map[Table]idMap{
			TableGroups:        groups,
			TableMembers:       members,
			TableUsers:         users,
			TableFeeStructures: structures,
			TableAttendance:    attendance,
		},
		owned: owned,
	}

	for n := range p.groups {
		p.groups[n].TenantID = tenantID
	}
	for n := range p.members {
		m := &p.members[n]
		m.TenantID = tenantID
		m.GroupID = r.ref(TableMembers, n, "groupId", TableGroups, m.GroupID)
	}
	for n := range p.users {
		p.users[n].TenantID = tenantID
	}
	for n := range p.favorites {
		f := &p.favorites[n]
		f.ID = i.newID()
		f.TenantID = tenantID
		f.UserID = r.ref(TableUserFavoriteGroups, n, "userId", TableUsers, f.UserID)
		f.GroupID = r.ref(TableUserFavoriteGroups, n, "groupId", TableGroups, f.GroupID)
	}
	for _, st := range []struct {
		table Table
		items []core.Structure
	}{{TableFeeStructures, p.fees}, {TableSalaryStructures, p.salaries}} {
		for n := range st.items {
			s := &st.items[n]
			s.TenantID = tenantID
			s.GroupID = r.optRef(st.table, n, "groupId", TableGroups, s.GroupID)
			s.MemberID = r.optRef(st.table, n, "memberId", TableMembers, s.MemberID)
		}
	}
	for n := range p.records {
		rec := &p.records[n]
		rec.ID = i.newID()
		rec.TenantID = tenantID
		rec.MemberID = r.ref(TableFinanceRecords, n, "memberId", TableMembers, rec.MemberID)
		rec.StructureID = r.ref(TableFinanceRecords, n, "structureId", TableFeeStructures, rec.StructureID)
	}
	for n := range p.attendance {
		a := &p.attendance[n]
		a.TenantID = tenantID
		a.GroupID = r.ref(TableAttendance, n, "groupId", TableGroups, a.GroupID)
	}
	for n := range p.attendRecs {
		a := &p.attendRecs[n]
		a.ID = i.newID()
		a.TenantID = tenantID
		a.AttendanceID = r.ref(TableAttendanceRecords, n, "attendanceId", TableAttendance, a.AttendanceID)
		a.MemberID = r.ref(TableAttendanceRecords, n, "memberId", TableMembers, a.MemberID)
	}
	return r.defaults
}

func insertTable(ctx context.Context, w Writer, p *plan, t Table) error {
	switch t {
	case TableGroups:
		return insertAll(ctx, p.groups, w.CreateGroup)
	case TableMembers:
		return insertAll(ctx, p.members, w.CreateMember)
	case TableUsers:
		return insertAll(ctx, p.users, w.CreateUser)
	case TableUserFavoriteGroups:
		return insertAll(ctx, p.favorites, w.CreateUserFavoriteGroup)
	case TableFeeStructures:
		return insertAll(ctx, p.fees, w.CreateStructure)
	case TableSalaryStructures:
		return insertAll(ctx, p.salaries, w.CreateStructure)
	case TableFinanceRecords:
		return insertAll(ctx, p.records, w.CreateFinanceRecord)
	case TableAttendance:
		return insertAll(ctx, p.attendance, w.CreateAttendance)
	case TableAttendanceRecords:
		return insertAll(ctx, p.attendRecs, w.CreateAttendanceRecord)
	}
	return fmt.Errorf("no insert for table %s", t)
}

func insertAll[T any](ctx context.Context, items []T, create func(context.Context, T) error) error {
	for n, it := range items {
		if err := create(ctx, it); err != nil {
			return fmt.Errorf("row %d: %w", n+2, err)
		}
	}
	return nil
}
