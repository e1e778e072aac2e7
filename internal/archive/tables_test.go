package archive

import (
	"reflect"
	"testing"
	"time"

	"feeledger/internal/core"
)

func TestRestoreOrder(t *testing.T) {
	want := []Table{
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
	if !reflect.DeepEqual(RestoreOrder, want) {
		t.Fatalf("RestoreOrder = %v, want %v", RestoreOrder, want)
	}

	pos := make(map[Table]int)
	for i, tbl := range RestoreOrder {
		pos[tbl] = i
	}
	// Each pair is (referenced, referencing).
	deps := [][2]Table{
		{TableGroups, TableMembers},
		{TableUsers, TableUserFavoriteGroups},
		{TableGroups, TableUserFavoriteGroups},
		{TableMembers, TableFeeStructures},
		{TableMembers, TableSalaryStructures},
		{TableMembers, TableFinanceRecords},
		{TableFeeStructures, TableFinanceRecords},
		{TableSalaryStructures, TableFinanceRecords},
		{TableGroups, TableAttendance},
		{TableAttendance, TableAttendanceRecords},
		{TableMembers, TableAttendanceRecords},
	}
	for _, d := range deps {
		if pos[d[0]] >= pos[d[1]] {
			t.Errorf("%s must be restored before %s", d[0], d[1])
		}
	}
	if _, ok := pos[TableTenant]; ok {
		t.Error("tenant table must not be restored")
	}
}

func TestParseTables(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []Table
		wantErr bool
	}{
		{"empty selects all", nil, AllTables, false},
		{"blank names select all", []string{" ", ""}, AllTables, false},
		{"normalized and ordered", []string{"Finance-Records", "groups", "groups"}, []Table{TableGroups, TableFinanceRecords}, false},
		{"unknown table", []string{"payments"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTables(tt.in)
			if tt.wantErr {
				if !core.IsKind(err, core.KindValidation) {
					t.Fatalf("ParseTables() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTables() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTables() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTableForFile(t *testing.T) {
	tests := []struct {
		name string
		want Table
		ok   bool
	}{
		{"members.xlsx", TableMembers, true},
		{"backup/fee-structures.xlsx", TableFeeStructures, true},
		{"members.csv", "", false},
		{"payments.xlsx", "payments", false},
	}
	for _, tt := range tests {
		got, ok := TableForFile(tt.name)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("TableForFile(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPresetResolve(t *testing.T) {
	now := time.Date(2025, 3, 31, 15, 4, 5, 0, time.UTC)
	tests := []struct {
		preset Preset
		from   time.Time
	}{
		{PresetDaily, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)},
		{PresetWeekly, time.Date(2025, 3, 24, 15, 4, 5, 0, time.UTC)},
		{PresetMonthly, time.Date(2025, 3, 3, 15, 4, 5, 0, time.UTC)}, // Feb 31 normalizes
		{PresetYearly, time.Date(2024, 3, 31, 15, 4, 5, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			r := tt.preset.Resolve(now)
			if !r.From.Equal(tt.from) || !r.To.Equal(now) {
				t.Errorf("Resolve() = [%v, %v], want [%v, %v]", r.From, r.To, tt.from, now)
			}
		})
	}

	if r := PresetAll.Resolve(now); !r.IsZero() {
		t.Errorf("PresetAll.Resolve() = %v, want zero range", r)
	}
	if _, err := ParsePreset("hourly"); !core.IsKind(err, core.KindValidation) {
		t.Errorf("ParsePreset(hourly) error = %v, want validation", err)
	}
}
