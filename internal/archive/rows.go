package archive

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
)

// Column headers per table. Structures share one layout for fee and salary.
var (
	tenantHeader    = []string{"id", "name", "createdAt", "updatedAt"}
	userHeader      = []string{"id", "tenantId", "name", "email", "role", "isActive", "createdAt", "updatedAt"}
	groupHeader     = []string{"id", "tenantId", "name", "type", "feeMode", "salaryMode", "groupFee", "groupSalary", "createdAt", "updatedAt"}
	memberHeader    = []string{"id", "tenantId", "groupId", "memberNo", "name", "email", "phone", "address", "joiningDate", "balance", "customFee", "customSalary", "hobbies", "criteriaVal", "isActive", "createdAt", "updatedAt"}
	favoriteHeader  = []string{"id", "tenantId", "userId", "groupId", "createdAt"}
	structureHeader = []string{"id", "tenantId", "groupId", "memberId", "name", "amount", "createdAt", "updatedAt"}
	financeHeader   = []string{"id", "tenantId", "memberId", "structureId", "structureType", "amountExpected", "amountPaid", "month", "year", "dueDate", "paidDate", "note", "createdAt", "updatedAt"}
	attendHeader    = []string{"id", "tenantId", "groupId", "date", "createdAt", "updatedAt"}
	attendRecHeader = []string{"id", "tenantId", "attendanceId", "memberId", "status", "createdAt", "updatedAt"}
)

func headerFor(t Table) []string {
	switch t {
	case TableTenant:
		return tenantHeader
	case TableUsers:
		return userHeader
	case TableGroups:
		return groupHeader
	case TableMembers:
		return memberHeader
	case TableUserFavoriteGroups:
		return favoriteHeader
	case TableFeeStructures, TableSalaryStructures:
		return structureHeader
	case TableFinanceRecords:
		return financeHeader
	case TableAttendance:
		return attendHeader
	case TableAttendanceRecords:
		return attendRecHeader
	}
	return nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmtTime(*t)
}

func fmtStrPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fmtNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func fmtIntPtr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func fmtInt64Ptr(i *int64) string {
	if i == nil {
		return ""
	}
	return strconv.FormatInt(*i, 10)
}

func fmtHobbies(h []string) string {
	if h == nil {
		h = []string{}
	}
	b, _ := json.Marshal(h)
	return string(b)
}

func tenantRow(t core.Tenant) []string {
	return []string{t.ID, t.Name, fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt)}
}

func userRow(u core.User) []string {
	return []string{u.ID, u.TenantID, u.Name, u.Email, u.Role, strconv.FormatBool(u.IsActive), fmtTime(u.CreatedAt), fmtTime(u.UpdatedAt)}
}

func groupRow(g core.Group) []string {
	return []string{g.ID, g.TenantID, g.Name, string(g.Type), string(g.FeeMode), string(g.SalaryMode),
		g.GroupFee.String(), g.GroupSalary.String(), fmtTime(g.CreatedAt), fmtTime(g.UpdatedAt)}
}

func memberRow(m core.Member) []string {
	return []string{m.ID, m.TenantID, m.GroupID, fmtInt64Ptr(m.MemberNo), m.Name, fmtStrPtr(m.Email), fmtStrPtr(m.Phone),
		fmtStrPtr(m.Address), fmtTimePtr(m.JoiningDate), fmtNullDecimal(m.Balance), fmtNullDecimal(m.CustomFee),
		fmtNullDecimal(m.CustomSalary), fmtHobbies(m.Hobbies), strconv.FormatBool(m.CriteriaVal),
		strconv.FormatBool(m.IsActive), fmtTime(m.CreatedAt), fmtTime(m.UpdatedAt)}
}

func favoriteRow(f core.UserFavoriteGroup) []string {
	return []string{f.ID, f.TenantID, f.UserID, f.GroupID, fmtTime(f.CreatedAt)}
}

func structureRow(s core.Structure) []string {
	return []string{s.ID, s.TenantID, fmtStrPtr(s.GroupID), fmtStrPtr(s.MemberID), s.Name, s.Amount.String(),
		fmtTime(s.CreatedAt), fmtTime(s.UpdatedAt)}
}

func financeRow(r core.FinanceRecord) []string {
	return []string{r.ID, r.TenantID, r.MemberID, r.StructureID, string(r.StructureType), r.AmountExpected.String(),
		r.AmountPaid.String(), fmtIntPtr(r.Month), fmtIntPtr(r.Year), fmtTimePtr(r.DueDate), fmtTimePtr(r.PaidDate),
		r.Note, fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt)}
}

func attendanceRow(a core.Attendance) []string {
	return []string{a.ID, a.TenantID, a.GroupID, fmtTime(a.Date), fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt)}
}

func attendanceRecordRow(a core.AttendanceRecord) []string {
	return []string{a.ID, a.TenantID, a.AttendanceID, a.MemberID, a.Status, fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt)}
}

func mapRows[T any](items []T, fn func(T) []string) [][]string {
	out := make([][]string, len(items))
	for i, it := range items {
		out[i] = fn(it)
	}
	return out
}
