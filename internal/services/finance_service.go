package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
)

// FinanceStore is the persistence the finance service writes through.
type FinanceStore interface {
	GetMember(ctx context.Context, tenantID, id string) (core.Member, error)
	CreateFinanceRecord(ctx context.Context, rec core.FinanceRecord) error
	GetFinanceRecord(ctx context.Context, tenantID, id string) (core.FinanceRecord, error)
	UpdateFinanceRecord(ctx context.Context, rec core.FinanceRecord) error
	ListFinanceRecords(ctx context.Context, tenantID string, f core.FinanceRecordFilter) ([]core.FinanceRecord, error)
}

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// NewFinanceRecord is a payment submission. Nil pointers mean "not supplied".
type NewFinanceRecord struct {
	MemberID       string
	StructureID    string
	StructureType  core.StructureType
	AmountExpected *decimal.Decimal
	AmountPaid     *decimal.Decimal
	Month          *int
	Year           *int
	DueDate        *time.Time
	PaidDate       *time.Time
	Note           string
}

// FinanceRecordPatch holds the fields of a partial update. Only non-nil fields are applied.
type FinanceRecordPatch struct {
	StructureID    *string
	StructureType  *core.StructureType
	AmountExpected *decimal.Decimal
	AmountPaid     *decimal.Decimal
	Month          *int
	Year           *int
	DueDate        *time.Time
	PaidDate       *time.Time
	Note           *string
}

// FinanceService records payment events and is the source of truth for paid amounts.
type FinanceService struct {
	store     FinanceStore
	publisher EventPublisher
	now       func() time.Time
	newID     func() string
}

// NewFinanceService wires the service. publisher may be nil, events are then skipped.
func NewFinanceService(store FinanceStore, publisher EventPublisher) *FinanceService {
	return &FinanceService{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Create validates in, fills defaults and stores a new record for the tenant.
func (s *FinanceService) Create(ctx context.Context, tenantID string, in NewFinanceRecord) (core.FinanceRecord, error) {
	if in.AmountExpected == nil {
		return core.FinanceRecord{}, core.Validation("amountExpected", "amountExpected is required")
	}

	now := s.now()
	rec := core.FinanceRecord{
		ID:             s.newID(),
		TenantID:       tenantID,
		MemberID:       in.MemberID,
		StructureID:    in.StructureID,
		StructureType:  in.StructureType,
		AmountExpected: *in.AmountExpected,
		AmountPaid:     decimal.Zero,
		Month:          in.Month,
		Year:           in.Year,
		DueDate:        in.DueDate,
		PaidDate:       in.PaidDate,
		Note:           in.Note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.AmountPaid != nil {
		rec.AmountPaid = *in.AmountPaid
	}
	if err := rec.Validate(); err != nil {
		return core.FinanceRecord{}, err
	}
	if rec.AmountExpected.IsNegative() {
		return core.FinanceRecord{}, core.Validation("amountExpected", "amountExpected cannot be negative")
	}

	if rec.DueDate == nil && rec.Month != nil && rec.Year != nil {
		due := EndOfMonth(*rec.Year, *rec.Month)
		rec.DueDate = &due
	}
	if rec.PaidDate == nil && rec.AmountPaid.IsPositive() {
		paid := now
		rec.PaidDate = &paid
	}

	if _, err := s.store.GetMember(ctx, tenantID, rec.MemberID); err != nil {
		return core.FinanceRecord{}, err
	}
	if err := s.store.CreateFinanceRecord(ctx, rec); err != nil {
		return core.FinanceRecord{}, fmt.Errorf("save finance record: %w", err)
	}

	s.publish(ctx, rec)
	return rec, nil
}

// Update applies patch to the tenant's record id. Omitted fields are left untouched.
func (s *FinanceService) Update(ctx context.Context, tenantID, id string, patch FinanceRecordPatch) (core.FinanceRecord, error) {
	rec, err := s.store.GetFinanceRecord(ctx, tenantID, id)
	if err != nil {
		return core.FinanceRecord{}, err
	}

	patch.apply(&rec)
	rec.UpdatedAt = s.now()

	if err := rec.Validate(); err != nil {
		return core.FinanceRecord{}, err
	}
	if err := s.store.UpdateFinanceRecord(ctx, rec); err != nil {
		return core.FinanceRecord{}, fmt.Errorf("update finance record: %w", err)
	}

	s.publish(ctx, rec)
	return rec, nil
}

// List returns the tenant's records matching f, newest first.
func (s *FinanceService) List(ctx context.Context, tenantID string, f core.FinanceRecordFilter) ([]core.FinanceRecord, error) {
	return s.store.ListFinanceRecords(ctx, tenantID, f)
}

func (p FinanceRecordPatch) apply(rec *core.FinanceRecord) {
	if p.StructureID != nil {
		rec.StructureID = *p.StructureID
	}
	if p.StructureType != nil {
		rec.StructureType = *p.StructureType
	}
	if p.AmountExpected != nil {
		rec.AmountExpected = *p.AmountExpected
	}
	if p.AmountPaid != nil {
		rec.AmountPaid = *p.AmountPaid
	}
	if p.Month != nil {
		rec.Month = p.Month
	}
	if p.Year != nil {
		rec.Year = p.Year
	}
	if p.DueDate != nil {
		rec.DueDate = p.DueDate
	}
	if p.PaidDate != nil {
		rec.PaidDate = p.PaidDate
	}
	if p.Note != nil {
		rec.Note = *p.Note
	}
}

// EndOfMonth returns the last millisecond of the zero-based month0 of year, in UTC.
func EndOfMonth(year, month0 int) time.Time {
	return time.Date(year, time.Month(month0+2), 1, 0, 0, 0, 0, time.UTC).Add(-time.Millisecond)
}

func (s *FinanceService) publish(ctx context.Context, rec core.FinanceRecord) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping finance event")
		return
	}
	event := amqp.NewFinanceRecordedEvent(rec.TenantID, rec.MemberID, rec.ID, string(rec.StructureType))
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		// The record is committed; the event only triggers a recompute.
		slog.ErrorContext(ctx, "Failed to publish finance event",
			"id", rec.ID, "tenant_id", rec.TenantID, "error", err)
	}
}
