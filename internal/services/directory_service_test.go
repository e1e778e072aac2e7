package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
)

func TestDirectoryService_CreateMember(t *testing.T) {
	store := newFakeStore()
	store.groups[key("t1", "g1")] = core.Group{ID: "g1", TenantID: "t1"}
	store.groups[key("t2", "g2")] = core.Group{ID: "g2", TenantID: "t2"}
	svc := NewDirectoryService(store)

	tests := []struct {
		name  string
		in    core.Member
		kind  core.Kind
		field string
	}{
		{"missing name", core.Member{GroupID: "g1"}, core.KindValidation, "name"},
		{"missing group id", core.Member{Name: "Asha"}, core.KindValidation, "groupId"},
		{"group of another tenant", core.Member{Name: "Asha", GroupID: "g2"}, core.KindNotFound, ""},
		{"negative custom fee", core.Member{Name: "Asha", GroupID: "g1", CustomFee: decimal.NewNullDecimal(decimal.NewFromInt(-1))}, core.KindValidation, "customFee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateMember(context.Background(), "t1", tt.in)
			if got := core.KindOf(err); err == nil || got != tt.kind {
				t.Fatalf("CreateMember() error = %v, want kind %s", err, tt.kind)
			}
			var ce *core.Error
			if errors.As(err, &ce) && ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}

	m, err := svc.CreateMember(context.Background(), "t1", core.Member{Name: "Asha", GroupID: "g1"})
	if err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	if m.ID == "" || m.TenantID != "t1" || m.Hobbies == nil {
		t.Errorf("unexpected member: %+v", m)
	}
}

func TestDirectoryService_CreateGroupDefaults(t *testing.T) {
	svc := NewDirectoryService(newFakeStore())

	g, err := svc.CreateGroup(context.Background(), "t1", core.Group{Name: "Class A", Type: "fee", GroupFee: decimal.NewFromInt(2000)})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if g.Type != core.GroupTypeFee || g.FeeMode != core.ModeGroup || g.SalaryMode != core.ModeGroup {
		t.Errorf("unexpected defaults: %+v", g)
	}

	if _, err := svc.CreateGroup(context.Background(), "t1", core.Group{Name: "X", Type: "RENT"}); !core.IsKind(err, core.KindValidation) {
		t.Errorf("CreateGroup() error = %v, want validation", err)
	}
}

func TestDirectoryService_AddStructure(t *testing.T) {
	store := newFakeStore()
	store.groups[key("t1", "g1")] = core.Group{ID: "g1", TenantID: "t1"}
	svc := NewDirectoryService(store)

	s, err := svc.AddStructure(context.Background(), "t1", NewStructure{Type: core.StructureFee, GroupID: "g1", Name: "Tuition", Amount: decimal.NewFromInt(1500)})
	if err != nil {
		t.Fatalf("AddStructure() error = %v", err)
	}
	if s.GroupID == nil || *s.GroupID != "g1" || s.MemberID != nil {
		t.Errorf("unexpected owner: %+v", s)
	}

	_, err = svc.AddStructure(context.Background(), "t1", NewStructure{Type: core.StructureFee, GroupID: "g1", MemberID: "m1", Name: "Bus"})
	if !core.IsKind(err, core.KindValidation) {
		t.Errorf("two owners error = %v, want validation", err)
	}
	_, err = svc.AddStructure(context.Background(), "t1", NewStructure{Type: core.StructureFee, MemberID: "m1", Name: "Bus"})
	if !core.IsKind(err, core.KindNotFound) {
		t.Errorf("unknown member error = %v, want not found", err)
	}
}

func TestDirectoryService_RegisterTenant(t *testing.T) {
	store := newFakeStore()
	svc := NewDirectoryService(store)
	ctx := context.Background()

	if _, err := svc.RegisterTenant(ctx, " ", "School"); !core.IsKind(err, core.KindValidation) {
		t.Errorf("RegisterTenant() without id error = %v, want validation", err)
	}
	if _, err := svc.RegisterTenant(ctx, "t1", ""); !core.IsKind(err, core.KindValidation) {
		t.Errorf("RegisterTenant() without name error = %v, want validation", err)
	}

	first, err := svc.RegisterTenant(ctx, "t1", "Hill School")
	if err != nil {
		t.Fatalf("RegisterTenant() error = %v", err)
	}
	if first.ID != "t1" || first.Name != "Hill School" || first.CreatedAt.IsZero() {
		t.Errorf("unexpected tenant: %+v", first)
	}

	again, err := svc.RegisterTenant(ctx, "t1", "Renamed")
	if err != nil {
		t.Fatalf("RegisterTenant() again error = %v", err)
	}
	if again.Name != "Hill School" || len(store.tenants) != 1 {
		t.Errorf("second registration changed the tenant: %+v", again)
	}
}
