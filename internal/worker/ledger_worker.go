package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/ledger"
	"feeledger/internal/session"
)

// Ledger is the part of the aggregator the worker recomputes with.
type Ledger interface {
	AggregateGroup(ctx context.Context, tenantID, groupID string, sessionYear int, st core.StructureType) (ledger.GroupLedger, error)
	AggregateTenant(ctx context.Context, tenantID string, sessionYear int, st core.StructureType) (ledger.TenantLedger, error)
}

type MemberReader interface {
	GetMember(ctx context.Context, tenantID, id string) (core.Member, error)
}

// LedgerWorker consumes ledger events and recomputes the affected totals so
// inconsistencies (overpayments, orphaned members) show up in the logs.
type LedgerWorker struct {
	ledger   Ledger
	members  MemberReader
	calendar session.Calendar
	now      func() time.Time
}

func NewLedgerWorker(l Ledger, members MemberReader, cal session.Calendar) *LedgerWorker {
	return &LedgerWorker{
		ledger:   l,
		members:  members,
		calendar: cal,
		now:      time.Now,
	}
}

// HandleEvent processes a single ledger event from AMQP
func (w *LedgerWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", ev.Type,
		"tenant_id", ev.TenantID)

	switch ev.Type {
	case amqp.EventFinanceRecorded:
		return w.handleFinanceRecorded(ctx, ev)
	case amqp.EventRestoreCompleted:
		return w.handleRestoreCompleted(ctx, ev)
	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event", "type", ev.Type)
		return nil
	}
}

func (w *LedgerWorker) handleFinanceRecorded(ctx context.Context, ev *amqp.LedgerEvent) error {
	member, err := w.members.GetMember(ctx, ev.TenantID, ev.MemberID)
	if err != nil {
		if core.IsKind(err, core.KindNotFound) {
			// Member removed after the record was written; nothing to recompute.
			slog.WarnContext(ctx, "Member of finance record no longer exists",
				"tenant_id", ev.TenantID,
				"member_id", ev.MemberID,
				"record_id", ev.RecordID)
			return nil
		}
		return fmt.Errorf("get member: %w", err)
	}

	st := core.StructureFee
	if ev.StructureType != "" {
		if parsed, err := core.ParseStructureType(ev.StructureType); err == nil {
			st = parsed
		}
	}

	sessionYear := w.calendar.YearOf(w.now())
	gl, err := w.ledger.AggregateGroup(ctx, ev.TenantID, member.GroupID, sessionYear, st)
	if err != nil {
		if core.IsKind(err, core.KindNotFound) {
			slog.WarnContext(ctx, "Member belongs to a missing group",
				"tenant_id", ev.TenantID,
				"member_id", member.ID,
				"group_id", member.GroupID)
			return nil
		}
		return fmt.Errorf("aggregate group: %w", err)
	}

	for _, line := range gl.Members {
		if line.MemberID == member.ID && line.Pending.IsNegative() {
			slog.WarnContext(ctx, "Member paid more than expected for the session",
				"tenant_id", ev.TenantID,
				"member_id", member.ID,
				"session_year", sessionYear,
				"structure_type", st,
				"expected", line.Expected.String(),
				"paid", line.Paid.String())
		}
	}

	slog.InfoContext(ctx, "Group ledger recomputed",
		"tenant_id", ev.TenantID,
		"group_id", gl.GroupID,
		"session_year", sessionYear,
		"structure_type", st,
		"expected", gl.Expected.String(),
		"paid", gl.Paid.String(),
		"pending", gl.Pending.String())
	return nil
}

func (w *LedgerWorker) handleRestoreCompleted(ctx context.Context, ev *amqp.LedgerEvent) error {
	sessionYear := w.calendar.YearOf(w.now())
	for _, st := range []core.StructureType{core.StructureFee, core.StructureSalary} {
		tl, err := w.ledger.AggregateTenant(ctx, ev.TenantID, sessionYear, st)
		if err != nil {
			return fmt.Errorf("aggregate tenant %s: %w", st, err)
		}
		if tl.ExcludedMembers > 0 {
			slog.WarnContext(ctx, "Restored data has members outside any known group",
				"tenant_id", ev.TenantID,
				"structure_type", st,
				"excluded", tl.ExcludedMembers)
		}
		slog.InfoContext(ctx, "Tenant ledger recomputed after restore",
			"tenant_id", ev.TenantID,
			"session_year", sessionYear,
			"structure_type", st,
			"groups", len(tl.Groups),
			"expected", tl.Expected.String(),
			"paid", tl.Paid.String(),
			"pending", tl.Pending.String())
	}
	return nil
}
