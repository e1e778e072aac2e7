package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"feeledger/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds every tenant-scoped statement. All reads and writes carry
// tenant_id in their WHERE clause or column list.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// rangeClause appends a created/date window on column to the query.
func rangeClause(query string, args []interface{}, column string, r core.DateRange) (string, []interface{}) {
	if r.IsZero() {
		return query, args
	}
	if !r.From.IsZero() {
		query += " AND " + column + " >= ?"
		args = append(args, formatTime(r.From))
	}
	if !r.To.IsZero() {
		query += " AND " + column + " <= ?"
		args = append(args, formatTime(r.To))
	}
	return query, args
}

// ---- tenants ----

const createTenant = `INSERT INTO tenants (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateTenant(ctx context.Context, t core.Tenant) error {
	_, err := q.db.ExecContext(ctx, createTenant, t.ID, t.Name, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	return err
}

const getTenant = `SELECT id, name, created_at, updated_at FROM tenants WHERE id = ?`

func (q *Queries) GetTenant(ctx context.Context, id string) (core.Tenant, error) {
	var t core.Tenant
	var created, updated string
	err := q.db.QueryRowContext(ctx, getTenant, id).Scan(&t.ID, &t.Name, &created, &updated)
	t.CreatedAt, t.UpdatedAt = parseTime(created), parseTime(updated)
	return t, err
}

// ---- users ----

const createUser = `INSERT INTO users (id, tenant_id, name, email, role, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateUser(ctx context.Context, u core.User) error {
	_, err := q.db.ExecContext(ctx, createUser, u.ID, u.TenantID, u.Name, u.Email, u.Role, u.IsActive,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	return err
}

const listUsers = `SELECT id, tenant_id, name, email, role, is_active, created_at, updated_at
FROM users WHERE tenant_id = ? ORDER BY created_at, id`

func (q *Queries) ListUsers(ctx context.Context, tenantID string) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.User
	for rows.Next() {
		var u core.User
		var created, updated string
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.Role, &u.IsActive, &created, &updated); err != nil {
			return nil, err
		}
		u.CreatedAt, u.UpdatedAt = parseTime(created), parseTime(updated)
		items = append(items, u)
	}
	return items, rows.Err()
}

// ---- groups ----

const groupColumns = `id, tenant_id, name, type, fee_mode, salary_mode, group_fee, group_salary, created_at, updated_at`

const createGroup = `INSERT INTO member_groups (` + groupColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateGroup(ctx context.Context, g core.Group) error {
	_, err := q.db.ExecContext(ctx, createGroup, g.ID, g.TenantID, g.Name, string(g.Type), string(g.FeeMode),
		string(g.SalaryMode), g.GroupFee.String(), g.GroupSalary.String(), formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	return err
}

func scanGroup(s interface{ Scan(...interface{}) error }) (core.Group, error) {
	var g core.Group
	var typ, feeMode, salaryMode, created, updated string
	if err := s.Scan(&g.ID, &g.TenantID, &g.Name, &typ, &feeMode, &salaryMode, &g.GroupFee, &g.GroupSalary, &created, &updated); err != nil {
		return core.Group{}, err
	}
	g.Type, g.FeeMode, g.SalaryMode = core.GroupType(typ), core.AssignmentMode(feeMode), core.AssignmentMode(salaryMode)
	g.CreatedAt, g.UpdatedAt = parseTime(created), parseTime(updated)
	return g, nil
}

const getGroup = `SELECT ` + groupColumns + ` FROM member_groups WHERE tenant_id = ? AND id = ?`

func (q *Queries) GetGroup(ctx context.Context, tenantID, id string) (core.Group, error) {
	return scanGroup(q.db.QueryRowContext(ctx, getGroup, tenantID, id))
}

const listGroups = `SELECT ` + groupColumns + ` FROM member_groups WHERE tenant_id = ? ORDER BY name, id`

func (q *Queries) ListGroups(ctx context.Context, tenantID string) ([]core.Group, error) {
	rows, err := q.db.QueryContext(ctx, listGroups, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

// ---- members ----

const memberColumns = `id, tenant_id, group_id, member_no, name, email, phone, address, joining_date, balance,
custom_fee, custom_salary, hobbies, criteria_val, is_active, created_at, updated_at`

const createMember = `INSERT INTO members (` + memberColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateMember(ctx context.Context, m core.Member) error {
	_, err := q.db.ExecContext(ctx, createMember, m.ID, m.TenantID, m.GroupID, nullInt64(m.MemberNo), m.Name,
		nullString(m.Email), nullString(m.Phone), nullString(m.Address), nullTime(m.JoiningDate),
		m.Balance, m.CustomFee, m.CustomSalary, encodeHobbies(m.Hobbies), m.CriteriaVal, m.IsActive,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	return err
}

func scanMember(s interface{ Scan(...interface{}) error }) (core.Member, error) {
	var (
		m                     core.Member
		memberNo              sql.NullInt64
		email, phone, address sql.NullString
		joining               sql.NullString
		hobbies               string
		created, updated      string
	)
	err := s.Scan(&m.ID, &m.TenantID, &m.GroupID, &memberNo, &m.Name, &email, &phone, &address, &joining,
		&m.Balance, &m.CustomFee, &m.CustomSalary, &hobbies, &m.CriteriaVal, &m.IsActive, &created, &updated)
	if err != nil {
		return core.Member{}, err
	}
	m.MemberNo = int64Ptr(memberNo)
	m.Email, m.Phone, m.Address = stringPtr(email), stringPtr(phone), stringPtr(address)
	m.JoiningDate = timePtr(joining)
	m.Hobbies = decodeHobbies(hobbies)
	m.CreatedAt, m.UpdatedAt = parseTime(created), parseTime(updated)
	return m, nil
}

const getMember = `SELECT ` + memberColumns + ` FROM members WHERE tenant_id = ? AND id = ?`

func (q *Queries) GetMember(ctx context.Context, tenantID, id string) (core.Member, error) {
	return scanMember(q.db.QueryRowContext(ctx, getMember, tenantID, id))
}

// ListMembers filters by group when groupID is set and by created_at when r is set.
func (q *Queries) ListMembers(ctx context.Context, tenantID, groupID string, r core.DateRange) ([]core.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE tenant_id = ?`
	args := []interface{}{tenantID}
	if groupID != "" {
		query += " AND group_id = ?"
		args = append(args, groupID)
	}
	query, args = rangeClause(query, args, "created_at", r)
	query += " ORDER BY created_at, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// ---- user favorite groups ----

const createUserFavoriteGroup = `INSERT INTO user_favorite_groups (id, tenant_id, user_id, group_id, created_at)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateUserFavoriteGroup(ctx context.Context, f core.UserFavoriteGroup) error {
	_, err := q.db.ExecContext(ctx, createUserFavoriteGroup, f.ID, f.TenantID, f.UserID, f.GroupID, formatTime(f.CreatedAt))
	return err
}

const listUserFavoriteGroups = `SELECT id, tenant_id, user_id, group_id, created_at
FROM user_favorite_groups WHERE tenant_id = ? ORDER BY created_at, id`

func (q *Queries) ListUserFavoriteGroups(ctx context.Context, tenantID string) ([]core.UserFavoriteGroup, error) {
	rows, err := q.db.QueryContext(ctx, listUserFavoriteGroups, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.UserFavoriteGroup
	for rows.Next() {
		var f core.UserFavoriteGroup
		var created string
		if err := rows.Scan(&f.ID, &f.TenantID, &f.UserID, &f.GroupID, &created); err != nil {
			return nil, err
		}
		f.CreatedAt = parseTime(created)
		items = append(items, f)
	}
	return items, rows.Err()
}

// ---- fee / salary structures ----

const createStructure = `INSERT INTO structures (id, tenant_id, structure_type, group_id, member_id, name, amount, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateStructure(ctx context.Context, s core.Structure) error {
	_, err := q.db.ExecContext(ctx, createStructure, s.ID, s.TenantID, string(s.Type), nullString(s.GroupID),
		nullString(s.MemberID), s.Name, s.Amount.String(), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return err
}

const listStructures = `SELECT id, tenant_id, structure_type, group_id, member_id, name, amount, created_at, updated_at
FROM structures WHERE tenant_id = ? AND structure_type = ? ORDER BY created_at, id`

func (q *Queries) ListStructures(ctx context.Context, tenantID string, st core.StructureType) ([]core.Structure, error) {
	rows, err := q.db.QueryContext(ctx, listStructures, tenantID, string(st))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Structure
	for rows.Next() {
		var (
			s                core.Structure
			typ              string
			groupID, member  sql.NullString
			created, updated string
		)
		if err := rows.Scan(&s.ID, &s.TenantID, &typ, &groupID, &member, &s.Name, &s.Amount, &created, &updated); err != nil {
			return nil, err
		}
		s.Type = core.StructureType(typ)
		s.GroupID, s.MemberID = stringPtr(groupID), stringPtr(member)
		s.CreatedAt, s.UpdatedAt = parseTime(created), parseTime(updated)
		items = append(items, s)
	}
	return items, rows.Err()
}

// ---- finance records ----

const financeColumns = `id, tenant_id, member_id, structure_id, structure_type, amount_expected, amount_paid,
month, year, due_date, paid_date, note, created_at, updated_at`

const createFinanceRecord = `INSERT INTO finance_records (` + financeColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateFinanceRecord(ctx context.Context, r core.FinanceRecord) error {
	_, err := q.db.ExecContext(ctx, createFinanceRecord, r.ID, r.TenantID, r.MemberID, r.StructureID,
		string(r.StructureType), r.AmountExpected.String(), r.AmountPaid.String(), nullInt(r.Month), nullInt(r.Year),
		nullTime(r.DueDate), nullTime(r.PaidDate), r.Note, formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	return err
}

const updateFinanceRecord = `UPDATE finance_records SET structure_id = ?, structure_type = ?, amount_expected = ?,
amount_paid = ?, month = ?, year = ?, due_date = ?, paid_date = ?, note = ?, updated_at = ?
WHERE tenant_id = ? AND id = ?`

func (q *Queries) UpdateFinanceRecord(ctx context.Context, r core.FinanceRecord) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateFinanceRecord, r.StructureID, string(r.StructureType),
		r.AmountExpected.String(), r.AmountPaid.String(), nullInt(r.Month), nullInt(r.Year), nullTime(r.DueDate),
		nullTime(r.PaidDate), r.Note, formatTime(r.UpdatedAt), r.TenantID, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanFinanceRecord(s interface{ Scan(...interface{}) error }) (core.FinanceRecord, error) {
	var (
		r                core.FinanceRecord
		typ              string
		month, year      sql.NullInt64
		due, paid        sql.NullString
		created, updated string
	)
	err := s.Scan(&r.ID, &r.TenantID, &r.MemberID, &r.StructureID, &typ, &r.AmountExpected, &r.AmountPaid,
		&month, &year, &due, &paid, &r.Note, &created, &updated)
	if err != nil {
		return core.FinanceRecord{}, err
	}
	r.StructureType = core.StructureType(typ)
	r.Month, r.Year = intPtr(month), intPtr(year)
	r.DueDate, r.PaidDate = timePtr(due), timePtr(paid)
	r.CreatedAt, r.UpdatedAt = parseTime(created), parseTime(updated)
	return r, nil
}

const getFinanceRecord = `SELECT ` + financeColumns + ` FROM finance_records WHERE tenant_id = ? AND id = ?`

func (q *Queries) GetFinanceRecord(ctx context.Context, tenantID, id string) (core.FinanceRecord, error) {
	return scanFinanceRecord(q.db.QueryRowContext(ctx, getFinanceRecord, tenantID, id))
}

// ListFinanceRecords returns records newest first.
func (q *Queries) ListFinanceRecords(ctx context.Context, tenantID string, f core.FinanceRecordFilter, r core.DateRange) ([]core.FinanceRecord, error) {
	var where strings.Builder
	where.WriteString(`SELECT ` + financeColumns + ` FROM finance_records WHERE tenant_id = ?`)
	args := []interface{}{tenantID}
	if f.MemberID != "" {
		where.WriteString(" AND member_id = ?")
		args = append(args, f.MemberID)
	}
	if f.StructureType != "" {
		where.WriteString(" AND structure_type = ?")
		args = append(args, string(f.StructureType))
	}
	if f.Year != nil {
		where.WriteString(" AND year = ?")
		args = append(args, int64(*f.Year))
	}
	query, args := rangeClause(where.String(), args, "created_at", r)
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.FinanceRecord
	for rows.Next() {
		rec, err := scanFinanceRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// ---- attendance ----

const createAttendance = `INSERT INTO attendance (id, tenant_id, group_id, date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAttendance(ctx context.Context, a core.Attendance) error {
	_, err := q.db.ExecContext(ctx, createAttendance, a.ID, a.TenantID, a.GroupID, formatTime(a.Date),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	return err
}

// ListAttendance filters on the attendance date when r is set.
func (q *Queries) ListAttendance(ctx context.Context, tenantID string, r core.DateRange) ([]core.Attendance, error) {
	query, args := rangeClause(`SELECT id, tenant_id, group_id, date, created_at, updated_at FROM attendance WHERE tenant_id = ?`,
		[]interface{}{tenantID}, "date", r)
	query += " ORDER BY date, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Attendance
	for rows.Next() {
		var a core.Attendance
		var date, created, updated string
		if err := rows.Scan(&a.ID, &a.TenantID, &a.GroupID, &date, &created, &updated); err != nil {
			return nil, err
		}
		a.Date, a.CreatedAt, a.UpdatedAt = parseTime(date), parseTime(created), parseTime(updated)
		items = append(items, a)
	}
	return items, rows.Err()
}

const createAttendanceRecord = `INSERT INTO attendance_records (id, tenant_id, attendance_id, member_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAttendanceRecord(ctx context.Context, a core.AttendanceRecord) error {
	_, err := q.db.ExecContext(ctx, createAttendanceRecord, a.ID, a.TenantID, a.AttendanceID, a.MemberID, a.Status,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	return err
}

// ListAttendanceRecords filters on created_at when r is set.
func (q *Queries) ListAttendanceRecords(ctx context.Context, tenantID string, r core.DateRange) ([]core.AttendanceRecord, error) {
	query, args := rangeClause(`SELECT id, tenant_id, attendance_id, member_id, status, created_at, updated_at
FROM attendance_records WHERE tenant_id = ?`, []interface{}{tenantID}, "created_at", r)
	query += " ORDER BY created_at, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.AttendanceRecord
	for rows.Next() {
		var a core.AttendanceRecord
		var created, updated string
		if err := rows.Scan(&a.ID, &a.TenantID, &a.AttendanceID, &a.MemberID, &a.Status, &created, &updated); err != nil {
			return nil, err
		}
		a.CreatedAt, a.UpdatedAt = parseTime(created), parseTime(updated)
		items = append(items, a)
	}
	return items, rows.Err()
}

// tenantTablesReverse lists the tenant-owned tables children first.
var tenantTablesReverse = []string{
	"attendance_records",
	"attendance",
	"finance_records",
	"structures",
	"user_favorite_groups",
	"users",
	"members",
	"member_groups",
}

// DeleteTenantData removes every tenant-owned row except the tenant itself.
func (q *Queries) DeleteTenantData(ctx context.Context, tenantID string) (int64, error) {
	var total int64
	for _, table := range tenantTablesReverse {
		res, err := q.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE tenant_id = ?", tenantID)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// OwnedIDs returns the ids of tenantID's rows in table, one of the tenant-owned tables.
func (q *Queries) OwnedIDs(ctx context.Context, tenantID, table string) (map[string]bool, error) {
	known := false
	for _, t := range tenantTablesReverse {
		if t == table {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("table %q is not tenant owned", table)
	}

	rows, err := q.db.QueryContext(ctx, "SELECT id FROM "+table+" WHERE tenant_id = ?", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}
