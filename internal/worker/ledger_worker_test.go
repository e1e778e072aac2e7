package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/ledger"
	"feeledger/internal/session"
)

type fakeLedger struct {
	groupCalls  []string
	tenantCalls []core.StructureType
	groupErr    error
	tenantErr   error
	lastYear    int
	lastType    core.StructureType
}

func (f *fakeLedger) AggregateGroup(_ context.Context, _ string, groupID string, sessionYear int, st core.StructureType) (ledger.GroupLedger, error) {
	f.groupCalls = append(f.groupCalls, groupID)
	f.lastYear, f.lastType = sessionYear, st
	if f.groupErr != nil {
		return ledger.GroupLedger{}, f.groupErr
	}
	return ledger.GroupLedger{
		GroupID:  groupID,
		Expected: decimal.NewFromInt(100),
		Paid:     decimal.NewFromInt(150),
		Pending:  decimal.NewFromInt(-50),
		Members: []ledger.MemberLine{{
			MemberID: "m1",
			Expected: decimal.NewFromInt(100),
			Paid:     decimal.NewFromInt(150),
			Pending:  decimal.NewFromInt(-50),
		}},
	}, nil
}

func (f *fakeLedger) AggregateTenant(_ context.Context, _ string, _ int, st core.StructureType) (ledger.TenantLedger, error) {
	f.tenantCalls = append(f.tenantCalls, st)
	if f.tenantErr != nil {
		return ledger.TenantLedger{}, f.tenantErr
	}
	return ledger.TenantLedger{StructureType: st, ExcludedMembers: 1}, nil
}

type fakeMembers map[string]core.Member

func (f fakeMembers) GetMember(_ context.Context, _ string, id string) (core.Member, error) {
	m, ok := f[id]
	if !ok {
		return core.Member{}, core.NotFound("member", id)
	}
	return m, nil
}

func newTestWorker(l *fakeLedger) *LedgerWorker {
	w := NewLedgerWorker(l, fakeMembers{"m1": {ID: "m1", GroupID: "g1"}}, session.Default())
	w.now = func() time.Time { return time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC) }
	return w
}

func TestHandleFinanceRecordedRecomputesGroup(t *testing.T) {
	l := &fakeLedger{}
	w := newTestWorker(l)

	ev := amqp.NewFinanceRecordedEvent("t1", "m1", "r1", "SALARY")
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(l.groupCalls) != 1 || l.groupCalls[0] != "g1" {
		t.Fatalf("expected one recompute of g1, got %v", l.groupCalls)
	}
	// February 2025 belongs to the session starting April 2024.
	if l.lastYear != 2024 {
		t.Errorf("session year = %d, want 2024", l.lastYear)
	}
	if l.lastType != core.StructureSalary {
		t.Errorf("structure type = %s, want SALARY", l.lastType)
	}
}

func TestHandleFinanceRecordedDefaultsToFee(t *testing.T) {
	l := &fakeLedger{}
	w := newTestWorker(l)

	if err := w.HandleEvent(context.Background(), amqp.NewFinanceRecordedEvent("t1", "m1", "r1", "")); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if l.lastType != core.StructureFee {
		t.Errorf("structure type = %s, want FEE", l.lastType)
	}
}

func TestHandleFinanceRecordedMissingMemberIsAcked(t *testing.T) {
	l := &fakeLedger{}
	w := newTestWorker(l)

	if err := w.HandleEvent(context.Background(), amqp.NewFinanceRecordedEvent("t1", "gone", "r1", "FEE")); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(l.groupCalls) != 0 {
		t.Errorf("no recompute expected for a missing member, got %v", l.groupCalls)
	}
}

func TestHandleFinanceRecordedMissingGroupIsAcked(t *testing.T) {
	l := &fakeLedger{groupErr: core.NotFound("group", "g1")}
	w := newTestWorker(l)

	if err := w.HandleEvent(context.Background(), amqp.NewFinanceRecordedEvent("t1", "m1", "r1", "FEE")); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
}

func TestHandleFinanceRecordedStoreErrorIsReturned(t *testing.T) {
	storeErr := core.Store("list members", errors.New("disk full"))
	l := &fakeLedger{groupErr: storeErr}
	w := newTestWorker(l)

	err := w.HandleEvent(context.Background(), amqp.NewFinanceRecordedEvent("t1", "m1", "r1", "FEE"))
	if !errors.Is(err, storeErr) {
		t.Errorf("HandleEvent() error = %v, want wrapped store error", err)
	}
}

func TestHandleRestoreCompletedAggregatesBothTypes(t *testing.T) {
	l := &fakeLedger{}
	w := newTestWorker(l)

	ev := amqp.NewRestoreCompletedEvent("t1", map[string]int{"members": 3})
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(l.tenantCalls) != 2 || l.tenantCalls[0] != core.StructureFee || l.tenantCalls[1] != core.StructureSalary {
		t.Errorf("tenant calls = %v, want [FEE SALARY]", l.tenantCalls)
	}
}

func TestHandleRestoreCompletedPropagatesErrors(t *testing.T) {
	l := &fakeLedger{tenantErr: errors.New("boom")}
	w := newTestWorker(l)

	if err := w.HandleEvent(context.Background(), amqp.NewRestoreCompletedEvent("t1", nil)); err == nil {
		t.Error("expected error from failing aggregation")
	}
	if len(l.tenantCalls) != 1 {
		t.Errorf("should stop after first failure, calls = %v", l.tenantCalls)
	}
}
