package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"feeledger/internal/core"
)

// DirectoryStore persists groups, members and their structures.
type DirectoryStore interface {
	CreateTenant(ctx context.Context, t core.Tenant) error
	GetTenant(ctx context.Context, id string) (core.Tenant, error)
	CreateGroup(ctx context.Context, g core.Group) error
	GetGroup(ctx context.Context, tenantID, id string) (core.Group, error)
	CreateMember(ctx context.Context, m core.Member) error
	GetMember(ctx context.Context, tenantID, id string) (core.Member, error)
	CreateStructure(ctx context.Context, s core.Structure) error
}

// DirectoryService creates the groups and members the ledger bills.
type DirectoryService struct {
	store DirectoryStore
	now   func() time.Time
	newID func() string
}

func NewDirectoryService(store DirectoryStore) *DirectoryService {
	return &DirectoryService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// RegisterTenant records the tenant row that exports carry as tenant.xlsx.
// Registering an existing tenant returns it unchanged.
func (s *DirectoryService) RegisterTenant(ctx context.Context, id, name string) (core.Tenant, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return core.Tenant{}, core.Validation("id", "id is required")
	}
	if name == "" {
		return core.Tenant{}, core.Validation("name", "name is required")
	}

	existing, err := s.store.GetTenant(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !core.IsKind(err, core.KindNotFound) {
		return core.Tenant{}, err
	}

	now := s.now()
	t := core.Tenant{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateTenant(ctx, t); err != nil {
		return core.Tenant{}, fmt.Errorf("save tenant: %w", err)
	}
	return t, nil
}

// CreateGroup stores g for the tenant. Missing modes default to Group.
func (s *DirectoryService) CreateGroup(ctx context.Context, tenantID string, g core.Group) (core.Group, error) {
	if g.FeeMode == "" {
		g.FeeMode = core.ModeGroup
	}
	if g.SalaryMode == "" {
		g.SalaryMode = core.ModeGroup
	}
	g.Type = core.GroupType(strings.ToUpper(string(g.Type)))
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}

	now := s.now()
	g.ID, g.TenantID = s.newID(), tenantID
	g.CreatedAt, g.UpdatedAt = now, now
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return core.Group{}, fmt.Errorf("save group: %w", err)
	}
	return g, nil
}

// CreateMember stores m for the tenant after checking its group belongs to the tenant.
func (s *DirectoryService) CreateMember(ctx context.Context, tenantID string, m core.Member) (core.Member, error) {
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	if _, err := s.store.GetGroup(ctx, tenantID, m.GroupID); err != nil {
		return core.Member{}, err
	}
	if m.CustomFee.Valid && m.CustomFee.Decimal.IsNegative() {
		return core.Member{}, core.Validation("customFee", "customFee cannot be negative")
	}
	if m.CustomSalary.Valid && m.CustomSalary.Decimal.IsNegative() {
		return core.Member{}, core.Validation("customSalary", "customSalary cannot be negative")
	}
	if m.Hobbies == nil {
		m.Hobbies = []string{}
	}

	now := s.now()
	m.ID, m.TenantID = s.newID(), tenantID
	m.CreatedAt, m.UpdatedAt = now, now
	if err := s.store.CreateMember(ctx, m); err != nil {
		return core.Member{}, fmt.Errorf("save member: %w", err)
	}
	return m, nil
}

// NewStructure is a component line item owned by a group or by a member.
type NewStructure struct {
	Type     core.StructureType
	GroupID  string
	MemberID string
	Name     string
	Amount   decimal.Decimal
}

// AddStructure attaches a component to exactly one group or member of the tenant.
func (s *DirectoryService) AddStructure(ctx context.Context, tenantID string, in NewStructure) (core.Structure, error) {
	if !in.Type.IsValid() {
		return core.Structure{}, core.Validation("structureType", "structureType must be FEE or SALARY")
	}
	if strings.TrimSpace(in.Name) == "" {
		return core.Structure{}, core.Validation("name", "name is required")
	}
	if in.Amount.IsNegative() {
		return core.Structure{}, core.Validation("amount", "amount cannot be negative")
	}
	if (in.GroupID == "") == (in.MemberID == "") {
		return core.Structure{}, core.Validation("groupId", "exactly one of groupId or memberId is required")
	}

	now := s.now()
	st := core.Structure{
		ID: s.newID(), TenantID: tenantID, Type: in.Type, Name: in.Name, Amount: in.Amount,
		CreatedAt: now, UpdatedAt: now,
	}
	if in.GroupID != "" {
		if _, err := s.store.GetGroup(ctx, tenantID, in.GroupID); err != nil {
			return core.Structure{}, err
		}
		st.GroupID = &in.GroupID
	} else {
		if _, err := s.store.GetMember(ctx, tenantID, in.MemberID); err != nil {
			return core.Structure{}, err
		}
		st.MemberID = &in.MemberID
	}

	if err := s.store.CreateStructure(ctx, st); err != nil {
		return core.Structure{}, fmt.Errorf("save structure: %w", err)
	}
	return st, nil
}
