package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
	"feeledger/internal/session"
)

type fakeSource struct {
	groups     []core.Group
	members    []core.Member
	structures []core.Structure
	records    []core.FinanceRecord
}

func (f fakeSource) ListGroups(_ context.Context, tenantID string) ([]core.Group, error) {
	var out []core.Group
	for _, g := range f.groups {
		if g.TenantID == tenantID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeSource) ListMembers(_ context.Context, tenantID, groupID string) ([]core.Member, error) {
	var out []core.Member
	for _, m := range f.members {
		if m.TenantID == tenantID && (groupID == "" || m.GroupID == groupID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f fakeSource) ListStructures(_ context.Context, tenantID string, st core.StructureType) ([]core.Structure, error) {
	var out []core.Structure
	for _, s := range f.structures {
		if s.TenantID == tenantID && s.Type == st {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f fakeSource) ListFinanceRecords(_ context.Context, tenantID string, filter core.FinanceRecordFilter) ([]core.FinanceRecord, error) {
	var out []core.FinanceRecord
	for _, r := range f.records {
		if r.TenantID == tenantID && (filter.StructureType == "" || r.StructureType == filter.StructureType) {
			out = append(out, r)
		}
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }

func paidRecord(memberID string, amount int64, year, month0 int) core.FinanceRecord {
	return core.FinanceRecord{
		ID: memberID + "-rec", TenantID: "t1", MemberID: memberID, StructureID: "s1",
		StructureType: core.StructureFee, AmountPaid: decimal.NewFromInt(amount),
		Year: ptr(year), Month: ptr(month0),
	}
}

func fixture() fakeSource {
	return fakeSource{
		groups: []core.Group{
			{ID: "g1", TenantID: "t1", Name: "Class A", Type: core.GroupTypeFee, FeeMode: core.ModeGroup, SalaryMode: core.ModeGroup, GroupFee: decimal.NewFromInt(2000)},
			{ID: "g2", TenantID: "t1", Name: "Staff", Type: core.GroupTypeSalary, FeeMode: core.ModeGroup, SalaryMode: core.ModeMember},
			{ID: "gx", TenantID: "t2", Name: "Other tenant", Type: core.GroupTypeFee, FeeMode: core.ModeGroup, GroupFee: decimal.NewFromInt(999)},
		},
		members: []core.Member{
			{ID: "m1", TenantID: "t1", GroupID: "g1", Name: "Asha", JoiningDate: ptr(time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC))},
			{ID: "m2", TenantID: "t1", GroupID: "g1", Name: "Bilal"},
			{ID: "m3", TenantID: "t1", GroupID: "gx", Name: "Cross tenant group"},
			{ID: "m4", TenantID: "t1", GroupID: "missing", Name: "Dangling"},
		},
		records: []core.FinanceRecord{
			paidRecord("m1", 18000, 2025, 7),
			paidRecord("m2", 2000, 2025, 3),
			paidRecord("m2", 2000, 2026, 0),
			paidRecord("m2", 500, 2025, 1),
		},
	}
}

func TestAggregateGroupSessionWindow(t *testing.T) {
	agg := NewAggregator(fixture(), session.Default(), PaidWindowSession)

	gl, err := agg.AggregateGroup(context.Background(), "t1", "g1", 2025, core.StructureFee)
	if err != nil {
		t.Fatalf("AggregateGroup: %v", err)
	}

	// m1: 8 months * 2000, m2: 12 months * 2000
	if !gl.Expected.Equal(decimal.NewFromInt(40000)) {
		t.Errorf("expected = %s, want 40000", gl.Expected)
	}
	// Feb 2025 (month0=1) belongs to session 2024 and is excluded.
	if !gl.Paid.Equal(decimal.NewFromInt(22000)) {
		t.Errorf("paid = %s, want 22000", gl.Paid)
	}
	if !gl.Pending.Equal(decimal.NewFromInt(18000)) {
		t.Errorf("pending = %s, want 18000", gl.Pending)
	}

	var asha MemberLine
	for _, m := range gl.Members {
		if m.MemberID == "m1" {
			asha = m
		}
	}
	if !asha.Pending.Equal(decimal.NewFromInt(-2000)) {
		t.Errorf("overpaid member pending = %s, want -2000", asha.Pending)
	}
	if asha.MonthsActive != 8 {
		t.Errorf("months active = %d, want 8", asha.MonthsActive)
	}
}

func TestAggregateGroupCalendarYearWindow(t *testing.T) {
	agg := NewAggregator(fixture(), session.Default(), PaidWindowCalendarYear)

	gl, err := agg.AggregateGroup(context.Background(), "t1", "g1", 2025, core.StructureFee)
	if err != nil {
		t.Fatalf("AggregateGroup: %v", err)
	}
	// Every 2025 record counts, the January 2026 one does not.
	if !gl.Paid.Equal(decimal.NewFromInt(20500)) {
		t.Errorf("paid = %s, want 20500", gl.Paid)
	}
}

func TestAggregateGroupNotFound(t *testing.T) {
	agg := NewAggregator(fixture(), session.Default(), PaidWindowSession)

	_, err := agg.AggregateGroup(context.Background(), "t1", "gx", 2025, core.StructureFee)
	if !core.IsKind(err, core.KindNotFound) {
		t.Fatalf("cross-tenant group should be not found, got %v", err)
	}
}

func TestAggregateTenantExcludesOrphans(t *testing.T) {
	agg := NewAggregator(fixture(), session.Default(), PaidWindowSession)

	tl, err := agg.AggregateTenant(context.Background(), "t1", 2025, core.StructureFee)
	if err != nil {
		t.Fatalf("AggregateTenant: %v", err)
	}
	if len(tl.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(tl.Groups))
	}
	if tl.ExcludedMembers != 2 {
		t.Errorf("excluded = %d, want 2", tl.ExcludedMembers)
	}
	if !tl.Expected.Equal(decimal.NewFromInt(40000)) {
		t.Errorf("tenant expected = %s, want 40000", tl.Expected)
	}
}

func TestAggregateSalaryOnFeeGroupIsZero(t *testing.T) {
	agg := NewAggregator(fixture(), session.Default(), PaidWindowSession)

	gl, err := agg.AggregateGroup(context.Background(), "t1", "g1", 2025, core.StructureSalary)
	if err != nil {
		t.Fatalf("AggregateGroup: %v", err)
	}
	if !gl.Expected.IsZero() {
		t.Errorf("expected = %s, want 0", gl.Expected)
	}
	for _, m := range gl.Members {
		if !m.AmountPerMonth.IsZero() {
			t.Errorf("member %s amount per month = %s, want 0", m.MemberID, m.AmountPerMonth)
		}
	}
}

func TestAggregateMemberModeComponents(t *testing.T) {
	src := fixture()
	src.members = append(src.members, core.Member{ID: "s1", TenantID: "t1", GroupID: "g2", Name: "Instructor",
		CustomSalary: decimal.NewNullDecimal(decimal.NewFromInt(40000))})
	src.structures = []core.Structure{
		{ID: "c1", TenantID: "t1", Type: core.StructureSalary, MemberID: ptr("s1"), Name: "Basic", Amount: decimal.NewFromInt(25000)},
		{ID: "c2", TenantID: "t1", Type: core.StructureSalary, MemberID: ptr("s1"), Name: "Allowance", Amount: decimal.NewFromInt(5000)},
	}
	agg := NewAggregator(src, session.Default(), PaidWindowSession)

	gl, err := agg.AggregateGroup(context.Background(), "t1", "g2", 2025, core.StructureSalary)
	if err != nil {
		t.Fatalf("AggregateGroup: %v", err)
	}
	if !gl.Expected.Equal(decimal.NewFromInt(360000)) {
		t.Errorf("expected = %s, want 360000", gl.Expected)
	}
}

func TestAggregateGroupsSkipsUnknown(t *testing.T) {
	agg := NewAggregator(fixture(), session.Default(), PaidWindowSession)

	out, err := agg.AggregateGroups(context.Background(), "t1", []string{"g1", "nope"}, 2025, core.StructureFee)
	if err != nil {
		t.Fatalf("AggregateGroups: %v", err)
	}
	if len(out) != 1 || out[0].GroupID != "g1" {
		t.Fatalf("unexpected groups: %+v", out)
	}
}
