// Package ledger rolls obligation results and recorded payments up into
// member-wise, group-wise and tenant-wide expected/paid/pending figures.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"feeledger/internal/core"
	"feeledger/internal/obligation"
	"feeledger/internal/session"
)

// PaidWindow selects which finance records count as paid for a session.
type PaidWindow string

const (
	// PaidWindowSession counts records whose (year, month) falls inside the
	// session months. Records without a month count when year is the session year.
	PaidWindowSession PaidWindow = "session"
	// PaidWindowCalendarYear counts every record whose year equals the session year.
	PaidWindowCalendarYear PaidWindow = "calendar-year"
)

func (w PaidWindow) IsValid() bool {
	return w == PaidWindowSession || w == PaidWindowCalendarYear
}

// Source is the read-only view of the store the aggregator needs.
type Source interface {
	ListGroups(ctx context.Context, tenantID string) ([]core.Group, error)
	ListMembers(ctx context.Context, tenantID, groupID string) ([]core.Member, error)
	ListStructures(ctx context.Context, tenantID string, st core.StructureType) ([]core.Structure, error)
	ListFinanceRecords(ctx context.Context, tenantID string, f core.FinanceRecordFilter) ([]core.FinanceRecord, error)
}

type MemberLine struct {
	MemberID       string          `json:"memberId"`
	Name           string          `json:"name"`
	MonthsActive   int             `json:"monthsActive"`
	AmountPerMonth decimal.Decimal `json:"amountPerMonth"`
	Expected       decimal.Decimal `json:"expected"`
	Paid           decimal.Decimal `json:"paid"`
	Pending        decimal.Decimal `json:"pending"`
}

type GroupLedger struct {
	GroupID       string             `json:"groupId"`
	GroupName     string             `json:"groupName"`
	SessionYear   int                `json:"sessionYear"`
	StructureType core.StructureType `json:"structureType"`
	Expected      decimal.Decimal    `json:"expected"`
	Paid          decimal.Decimal    `json:"paid"`
	Pending       decimal.Decimal    `json:"pending"`
	Members       []MemberLine       `json:"members,omitempty"`
}

func (g GroupLedger) Totals() core.Totals {
	return core.NewTotals(g.Expected, g.Paid)
}

type TenantLedger struct {
	SessionYear     int                `json:"sessionYear"`
	StructureType   core.StructureType `json:"structureType"`
	Expected        decimal.Decimal    `json:"expected"`
	Paid            decimal.Decimal    `json:"paid"`
	Pending         decimal.Decimal    `json:"pending"`
	Groups          []GroupLedger      `json:"groups"`
	ExcludedMembers int                `json:"excludedMembers"`
}

type Aggregator struct {
	source   Source
	calc     *obligation.Calculator
	calendar session.Calendar
	window   PaidWindow
}

func NewAggregator(source Source, cal session.Calendar, window PaidWindow) *Aggregator {
	if !window.IsValid() {
		window = PaidWindowSession
	}
	return &Aggregator{
		source:   source,
		calc:     obligation.NewCalculator(cal),
		calendar: cal,
		window:   window,
	}
}

// snapshot is the tenant data one aggregation pass works on.
type snapshot struct {
	groups  map[string]core.Group
	order   []string
	members map[string][]core.Member
	records []core.FinanceRecord
	orphans int
}

func (a *Aggregator) load(ctx context.Context, tenantID string, st core.StructureType) (*snapshot, error) {
	var (
		groups     []core.Group
		members    []core.Member
		structures []core.Structure
		records    []core.FinanceRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		groups, err = a.source.ListGroups(gctx, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = a.source.ListMembers(gctx, tenantID, "")
		return err
	})
	g.Go(func() error {
		var err error
		structures, err = a.source.ListStructures(gctx, tenantID, st)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = a.source.ListFinanceRecords(gctx, tenantID, core.FinanceRecordFilter{StructureType: st})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load ledger data: %w", err)
	}

	snap := &snapshot{
		groups:  make(map[string]core.Group, len(groups)),
		members: make(map[string][]core.Member),
	}

	groupItems := make(map[string][]core.Structure)
	memberItems := make(map[string][]core.Structure)
	for _, s := range structures {
		switch {
		case s.MemberID != nil && *s.MemberID != "":
			memberItems[*s.MemberID] = append(memberItems[*s.MemberID], s)
		case s.GroupID != nil && *s.GroupID != "":
			groupItems[*s.GroupID] = append(groupItems[*s.GroupID], s)
		}
	}

	for _, grp := range groups {
		if grp.TenantID != tenantID {
			continue
		}
		setComponents(&grp.FeeComponents, &grp.SalaryComponents, st, groupItems[grp.ID])
		snap.groups[grp.ID] = grp
		snap.order = append(snap.order, grp.ID)
	}

	for _, m := range members {
		if m.TenantID != tenantID {
			continue
		}
		if _, ok := snap.groups[m.GroupID]; !ok {
			snap.orphans++
			slog.DebugContext(ctx, "Member excluded from ledger: group not found",
				"tenant_id", tenantID, "member_id", m.ID, "group_id", m.GroupID)
			continue
		}
		setComponents(&m.FeeComponents, &m.SalaryComponents, st, memberItems[m.ID])
		snap.members[m.GroupID] = append(snap.members[m.GroupID], m)
	}

	for _, r := range records {
		if r.TenantID != tenantID || r.StructureType != st {
			continue
		}
		snap.records = append(snap.records, r)
	}

	return snap, nil
}

func setComponents(fee, salary *[]core.Structure, st core.StructureType, items []core.Structure) {
	if len(items) == 0 {
		return
	}
	if st == core.StructureSalary {
		*salary = items
		return
	}
	*fee = items
}

// counts reports whether a finance record belongs to the session under the configured window.
func (a *Aggregator) counts(r core.FinanceRecord, sessionYear int) bool {
	if r.Year == nil {
		return false
	}
	if a.window == PaidWindowCalendarYear || r.Month == nil {
		return *r.Year == sessionYear
	}
	return a.calendar.Contains(sessionYear, *r.Year, *r.Month)
}

func (a *Aggregator) paidByMember(snap *snapshot, sessionYear int) map[string]decimal.Decimal {
	paid := make(map[string]decimal.Decimal)
	for _, r := range snap.records {
		if !a.counts(r, sessionYear) {
			continue
		}
		paid[r.MemberID] = paid[r.MemberID].Add(r.AmountPaid)
	}
	return paid
}

func (a *Aggregator) group(snap *snapshot, paid map[string]decimal.Decimal, groupID string, sessionYear int, st core.StructureType) GroupLedger {
	grp := snap.groups[groupID]
	out := GroupLedger{
		GroupID:       grp.ID,
		GroupName:     grp.Name,
		SessionYear:   sessionYear,
		StructureType: st,
	}
	members := snap.members[groupID]
	out.Members = make([]MemberLine, 0, len(members))
	for _, m := range members {
		res := a.calc.ComputeExpected(grp, m, sessionYear, st)
		p := paid[m.ID]
		out.Members = append(out.Members, MemberLine{
			MemberID:       m.ID,
			Name:           m.Name,
			MonthsActive:   res.MonthsActive,
			AmountPerMonth: res.AmountPerMonth,
			Expected:       res.Expected,
			Paid:           p,
			Pending:        res.Expected.Sub(p),
		})
		out.Expected = out.Expected.Add(res.Expected)
		out.Paid = out.Paid.Add(p)
	}
	sort.Slice(out.Members, func(i, j int) bool { return out.Members[i].Name < out.Members[j].Name })
	out.Pending = out.Expected.Sub(out.Paid)
	return out
}

// AggregateGroup returns the ledger of one group, with its member-wise breakdown.
// A group that does not exist for the tenant is reported as not found.
func (a *Aggregator) AggregateGroup(ctx context.Context, tenantID, groupID string, sessionYear int, st core.StructureType) (GroupLedger, error) {
	snap, err := a.load(ctx, tenantID, st)
	if err != nil {
		return GroupLedger{}, err
	}
	if _, ok := snap.groups[groupID]; !ok {
		return GroupLedger{}, core.NotFound("group", groupID)
	}
	return a.group(snap, a.paidByMember(snap, sessionYear), groupID, sessionYear, st), nil
}

// AggregateGroups returns group-wise ledgers for the requested groups, or for
// every group of the tenant when groupIDs is empty. Unknown ids are skipped.
func (a *Aggregator) AggregateGroups(ctx context.Context, tenantID string, groupIDs []string, sessionYear int, st core.StructureType) ([]GroupLedger, error) {
	snap, err := a.load(ctx, tenantID, st)
	if err != nil {
		return nil, err
	}
	ids := groupIDs
	if len(ids) == 0 {
		ids = snap.order
	}
	paid := a.paidByMember(snap, sessionYear)
	out := make([]GroupLedger, 0, len(ids))
	for _, id := range ids {
		if _, ok := snap.groups[id]; !ok {
			slog.WarnContext(ctx, "Group skipped in ledger: not found", "tenant_id", tenantID, "group_id", id)
			continue
		}
		out = append(out, a.group(snap, paid, id, sessionYear, st))
	}
	return out, nil
}

// AggregateTenant returns every group ledger plus tenant-wide totals. Members
// whose group is missing or belongs to another tenant are excluded and counted.
func (a *Aggregator) AggregateTenant(ctx context.Context, tenantID string, sessionYear int, st core.StructureType) (TenantLedger, error) {
	snap, err := a.load(ctx, tenantID, st)
	if err != nil {
		return TenantLedger{}, err
	}
	paid := a.paidByMember(snap, sessionYear)
	out := TenantLedger{
		SessionYear:     sessionYear,
		StructureType:   st,
		Groups:          make([]GroupLedger, 0, len(snap.order)),
		ExcludedMembers: snap.orphans,
	}
	total := core.Totals{}
	for _, id := range snap.order {
		gl := a.group(snap, paid, id, sessionYear, st)
		total = total.Add(gl.Totals())
		out.Groups = append(out.Groups, gl)
	}
	out.Expected, out.Paid, out.Pending = total.Expected, total.Paid, total.Pending
	return out, nil
}
