package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	GroupTypeFee    GroupType = "FEE"
	GroupTypeSalary GroupType = "SALARY"
	GroupTypeBoth   GroupType = "BOTH"

	ModeGroup  AssignmentMode = "Group"
	ModeMember AssignmentMode = "Member"

	StructureFee    StructureType = "FEE"
	StructureSalary StructureType = "SALARY"
)

type (
	// GroupType states which obligations a group bills.
	GroupType string

	// AssignmentMode states whether the billing amount is resolved per group or per member.
	AssignmentMode string

	// StructureType selects the fee or the salary side of a group.
	StructureType string

	Tenant struct {
		ID        string
		Name      string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		ID        string
		TenantID  string
		Name      string
		Email     string
		Role      string
		IsActive  bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Group struct {
		ID          string
		TenantID    string
		Name        string
		Type        GroupType
		FeeMode     AssignmentMode
		SalaryMode  AssignmentMode
		GroupFee    decimal.Decimal
		GroupSalary decimal.Decimal
		CreatedAt   time.Time
		UpdatedAt   time.Time

		// Group-level line items (member id unset). Loaded by the caller.
		FeeComponents    []Structure
		SalaryComponents []Structure
	}

	Member struct {
		ID           string
		TenantID     string
		GroupID      string
		MemberNo     *int64
		Name         string
		Email        *string
		Phone        *string
		Address      *string
		JoiningDate  *time.Time
		Balance      decimal.NullDecimal
		CustomFee    decimal.NullDecimal
		CustomSalary decimal.NullDecimal
		Hobbies      []string
		CriteriaVal  bool
		IsActive     bool
		CreatedAt    time.Time
		UpdatedAt    time.Time

		// Member-level line items. Loaded by the caller.
		FeeComponents    []Structure
		SalaryComponents []Structure
	}

	// Structure is a named amount line item of a fee or salary structure.
	Structure struct {
		ID        string
		TenantID  string
		Type      StructureType
		GroupID   *string
		MemberID  *string
		Name      string
		Amount    decimal.Decimal
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// FinanceRecord is one logged payment event. Month is zero based (0 = January).
	FinanceRecord struct {
		ID             string
		TenantID       string
		MemberID       string
		StructureID    string
		StructureType  StructureType
		AmountExpected decimal.Decimal
		AmountPaid     decimal.Decimal
		Month          *int
		Year           *int
		DueDate        *time.Time
		PaidDate       *time.Time
		Note           string
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Attendance struct {
		ID        string
		TenantID  string
		GroupID   string
		Date      time.Time
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	AttendanceRecord struct {
		ID           string
		TenantID     string
		AttendanceID string
		MemberID     string
		Status       string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	UserFavoriteGroup struct {
		ID        string
		TenantID  string
		UserID    string
		GroupID   string
		CreatedAt time.Time
	}
)

func (t GroupType) IsValid() bool {
	switch t {
	case GroupTypeFee, GroupTypeSalary, GroupTypeBoth:
		return true
	}
	return false
}

// Includes reports whether a group of this type bills the given structure type.
func (t GroupType) Includes(st StructureType) bool {
	switch t {
	case GroupTypeBoth:
		return st == StructureFee || st == StructureSalary
	case GroupTypeFee:
		return st == StructureFee
	case GroupTypeSalary:
		return st == StructureSalary
	}
	return false
}

func (m AssignmentMode) IsValid() bool {
	return m == ModeGroup || m == ModeMember
}

func (st StructureType) IsValid() bool {
	return st == StructureFee || st == StructureSalary
}

// ParseStructureType accepts FEE/SALARY in any case.
func ParseStructureType(s string) (StructureType, error) {
	st := StructureType(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", Validation("structureType", "structureType must be FEE or SALARY")
	}
	return st, nil
}

// ModeFor returns the assignment mode used for the given structure type.
func (g Group) ModeFor(st StructureType) AssignmentMode {
	if st == StructureSalary {
		return g.SalaryMode
	}
	return g.FeeMode
}

// DefaultFor returns the flat group amount for the given structure type.
func (g Group) DefaultFor(st StructureType) decimal.Decimal {
	if st == StructureSalary {
		return g.GroupSalary
	}
	return g.GroupFee
}

func (g Group) ComponentsFor(st StructureType) []Structure {
	if st == StructureSalary {
		return g.SalaryComponents
	}
	return g.FeeComponents
}

// CustomFor returns the member override for the given structure type.
func (m Member) CustomFor(st StructureType) decimal.NullDecimal {
	if st == StructureSalary {
		return m.CustomSalary
	}
	return m.CustomFee
}

func (m Member) ComponentsFor(st StructureType) []Structure {
	if st == StructureSalary {
		return m.SalaryComponents
	}
	return m.FeeComponents
}

// MaxTextLength is the longest free-text value a record may hold. It matches
// the per-cell limit of the archive's spreadsheet documents.
const MaxTextLength = 32767

// Validate checks the fields required to create a group.
func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return Validation("name", "name is required")
	}
	if !g.Type.IsValid() {
		return Validation("type", "type must be FEE, SALARY or BOTH")
	}
	if !g.FeeMode.IsValid() {
		return Validation("feeMode", "feeMode must be Group or Member")
	}
	if !g.SalaryMode.IsValid() {
		return Validation("salaryMode", "salaryMode must be Group or Member")
	}
	if g.GroupFee.IsNegative() {
		return Validation("groupFee", "groupFee cannot be negative")
	}
	if g.GroupSalary.IsNegative() {
		return Validation("groupSalary", "groupSalary cannot be negative")
	}
	return nil
}

// Validate checks the fields required to create a member.
func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return Validation("name", "name is required")
	}
	if strings.TrimSpace(m.GroupID) == "" {
		return Validation("groupId", "groupId is required")
	}
	if utf8.RuneCountInString(m.Name) > MaxTextLength {
		return Validation("name", fmt.Sprintf("name cannot exceed %d characters", MaxTextLength))
	}
	return nil
}

// Validate checks the fields required to record a payment.
func (r FinanceRecord) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return Validation("tenantId", "tenantId is required")
	}
	if strings.TrimSpace(r.MemberID) == "" {
		return Validation("memberId", "memberId is required")
	}
	if strings.TrimSpace(r.StructureID) == "" {
		return Validation("structureId", "structureId is required")
	}
	if !r.StructureType.IsValid() {
		return Validation("structureType", "structureType must be FEE or SALARY")
	}
	if r.Month != nil && (*r.Month < 0 || *r.Month > 11) {
		return Validation("month", "month must be between 0 and 11")
	}
	if utf8.RuneCountInString(r.Note) > MaxTextLength {
		return Validation("note", fmt.Sprintf("note cannot exceed %d characters", MaxTextLength))
	}
	return nil
}

// FinanceRecordFilter narrows finance record queries. The tenant is always required
// and passed separately; zero values mean "any".
type FinanceRecordFilter struct {
	MemberID      string
	StructureType StructureType
	Year          *int
}

// DateRange is an inclusive [From, To] window. The zero value means all time.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t lies in the range. The zero range contains everything.
func (r DateRange) Contains(t time.Time) bool {
	if r.IsZero() {
		return true
	}
	return !t.Before(r.From) && !t.After(r.To)
}
