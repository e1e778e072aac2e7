// Package archive exports a tenant's relational state to a zip of one XLSX
// workbook per table and restores such archives into a tenant.
package archive

import (
	"strings"

	"feeledger/internal/core"
)

// Table names one archivable entity table.
type Table string

const (
	TableTenant             Table = "tenant"
	TableUsers              Table = "users"
	TableGroups             Table = "groups"
	TableMembers            Table = "members"
	TableAttendance         Table = "attendance"
	TableAttendanceRecords  Table = "attendance-records"
	TableFinanceRecords     Table = "finance-records"
	TableFeeStructures      Table = "fee-structures"
	TableSalaryStructures   Table = "salary-structures"
	TableUserFavoriteGroups Table = "user-favorite-groups"
)

// AllTables is the closed set of exportable tables, in archive order.
var AllTables = []Table{
	TableTenant,
	TableUsers,
	TableGroups,
	TableMembers,
	TableAttendance,
	TableAttendanceRecords,
	TableFinanceRecords,
	TableFeeStructures,
	TableSalaryStructures,
	TableUserFavoriteGroups,
}

// RestoreOrder is the insert order on restore: every table comes after the
// tables its rows reference. The tenant table is never restored.
var RestoreOrder = []Table{
	TableGroups,
	TableMembers,
	TableUsers,
	TableUserFavoriteGroups,
	TableFeeStructures,
	TableSalaryStructures,
	TableFinanceRecords,
	TableAttendance,
	TableAttendanceRecords,
}

const fileExt = ".xlsx"

// FileName is the fixed name of the table's document inside an archive.
func (t Table) FileName() string {
	return string(t) + fileExt
}

func (t Table) IsValid() bool {
	for _, known := range AllTables {
		if t == known {
			return true
		}
	}
	return false
}

// Dated reports whether exports of t honour a date range.
func (t Table) Dated() bool {
	return t == TableMembers || t == TableAttendance || t == TableFinanceRecords
}

// TableForFile maps an archive entry name back to its table.
func TableForFile(name string) (Table, bool) {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	t := Table(strings.TrimSuffix(name, fileExt))
	return t, t.IsValid()
}

// ParseTables validates requested table names. No names selects every table.
// Duplicates are dropped and the result follows AllTables order.
func ParseTables(names []string) ([]Table, error) {
	if len(names) == 0 {
		return append([]Table(nil), AllTables...), nil
	}
	want := make(map[Table]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		t := Table(n)
		if !t.IsValid() {
			return nil, core.Validation("tables", "unknown table "+n)
		}
		want[t] = true
	}
	if len(want) == 0 {
		return append([]Table(nil), AllTables...), nil
	}
	out := make([]Table, 0, len(want))
	for _, t := range AllTables {
		if want[t] {
			out = append(out, t)
		}
	}
	return out, nil
}
