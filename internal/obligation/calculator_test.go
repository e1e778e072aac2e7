package obligation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
	"feeledger/internal/session"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func feeGroup(fee int64) core.Group {
	return core.Group{
		ID: "g1", TenantID: "t1", Name: "Class A",
		Type: core.GroupTypeFee, FeeMode: core.ModeGroup, SalaryMode: core.ModeGroup,
		GroupFee: decimal.NewFromInt(fee),
	}
}

func TestComputeExpectedProration(t *testing.T) {
	calc := NewCalculator(session.Default())
	member := core.Member{ID: "m1", GroupID: "g1", JoiningDate: date(2025, time.August, 15)}

	got := calc.ComputeExpected(feeGroup(2000), member, 2025, core.StructureFee)

	if got.MonthsActive != 8 {
		t.Errorf("MonthsActive = %d, want 8", got.MonthsActive)
	}
	if !got.Expected.Equal(decimal.NewFromInt(16000)) {
		t.Errorf("Expected = %s, want 16000", got.Expected)
	}
}

func TestMonthsActive(t *testing.T) {
	calc := NewCalculator(session.Default())
	tests := []struct {
		name string
		join *time.Time
		want int
	}{
		{"no joining date means full session", nil, 12},
		{"joined before session", date(2020, time.January, 10), 12},
		{"joined on session start", date(2025, time.April, 1), 12},
		{"joined in last month", date(2026, time.March, 20), 1},
		{"joined after session", date(2026, time.April, 1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calc.MonthsActive(tt.join, 2025); got != tt.want {
				t.Errorf("MonthsActive = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestZeroPolicyForExcludedType(t *testing.T) {
	calc := NewCalculator(session.Default())
	got := calc.ComputeExpected(feeGroup(2000), core.Member{ID: "m1"}, 2025, core.StructureSalary)

	if !got.AmountPerMonth.IsZero() || !got.Expected.IsZero() {
		t.Fatalf("salary on a fee-only group should be zero, got %+v", got)
	}
	if got.MonthsActive != 12 {
		t.Errorf("months active should still be reported, got %d", got.MonthsActive)
	}
}

func TestResolveAmount(t *testing.T) {
	groupItems := []core.Structure{
		{Name: "Tuition", Amount: decimal.NewFromInt(1500)},
		{Name: "Transport", Amount: decimal.NewFromInt(300)},
	}
	memberItems := []core.Structure{{Name: "Tuition", Amount: decimal.NewFromInt(900)}}

	tests := []struct {
		name   string
		group  core.Group
		member core.Member
		st     core.StructureType
		want   int64
	}{
		{
			name:  "group mode flat default",
			group: feeGroup(2000),
			st:    core.StructureFee,
			want:  2000,
		},
		{
			name: "group mode components override default",
			group: func() core.Group {
				g := feeGroup(2000)
				g.FeeComponents = groupItems
				return g
			}(),
			st:   core.StructureFee,
			want: 1800,
		},
		{
			name: "member mode custom amount",
			group: core.Group{
				Type: core.GroupTypeBoth, FeeMode: core.ModeMember, SalaryMode: core.ModeGroup,
				GroupFee: decimal.NewFromInt(5000),
			},
			member: core.Member{CustomFee: decimal.NewNullDecimal(decimal.NewFromInt(1200))},
			st:     core.StructureFee,
			want:   1200,
		},
		{
			name:   "member mode components override custom",
			group:  core.Group{Type: core.GroupTypeFee, FeeMode: core.ModeMember},
			member: core.Member{CustomFee: decimal.NewNullDecimal(decimal.NewFromInt(1200)), FeeComponents: memberItems},
			st:     core.StructureFee,
			want:   900,
		},
		{
			name:  "member mode without override",
			group: core.Group{Type: core.GroupTypeFee, FeeMode: core.ModeMember},
			st:    core.StructureFee,
			want:  0,
		},
		{
			name: "salary side uses salary mode",
			group: core.Group{
				Type: core.GroupTypeSalary, FeeMode: core.ModeMember, SalaryMode: core.ModeGroup,
				GroupSalary: decimal.NewFromInt(30000),
			},
			st:   core.StructureSalary,
			want: 30000,
		},
		{
			name:  "unknown mode resolves to zero",
			group: core.Group{Type: core.GroupTypeFee, FeeMode: "Other", GroupFee: decimal.NewFromInt(10)},
			st:    core.StructureFee,
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveAmount(tt.group, tt.member, tt.st)
			if !got.Equal(decimal.NewFromInt(tt.want)) {
				t.Errorf("ResolveAmount = %s, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeExpectedIsIdempotent(t *testing.T) {
	calc := NewCalculator(session.Default())
	g := feeGroup(2500)
	m := core.Member{ID: "m1", JoiningDate: date(2025, time.November, 3)}

	first := calc.ComputeExpected(g, m, 2025, core.StructureFee)
	second := calc.ComputeExpected(g, m, 2025, core.StructureFee)

	if first.MonthsActive != second.MonthsActive ||
		!first.AmountPerMonth.Equal(second.AmountPerMonth) ||
		!first.Expected.Equal(second.Expected) {
		t.Fatalf("recompute differs: %+v vs %+v", first, second)
	}
}
