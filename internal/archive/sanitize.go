package archive

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
)

// FieldDefault records a cell that failed to coerce and the value used instead.
type FieldDefault struct {
	Table   Table  `json:"table"`
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Raw     string `json:"raw"`
	Default string `json:"default"`
}

// cells reads typed values out of one archive row. Coercion failures are
// recovered with a default and noted; they never abort the row.
type cells struct {
	table    Table
	index    int
	row      Row
	now      time.Time
	defaults []FieldDefault
}

func newCells(t Table, index int, row Row, now time.Time) *cells {
	return &cells{table: t, index: index, row: row, now: now}
}

func (c *cells) note(field, raw, def string) {
	c.defaults = append(c.defaults, FieldDefault{Table: c.table, Row: c.index, Field: field, Raw: raw, Default: def})
}

func (c *cells) raw(field string) string {
	return strings.TrimSpace(c.row[field])
}

func (c *cells) str(field string) string {
	return c.row[field]
}

// optStr maps blank cells to nil.
func (c *cells) optStr(field string) *string {
	v := c.raw(field)
	if v == "" {
		return nil
	}
	return &v
}

func (c *cells) amount(field string) decimal.Decimal {
	v := c.raw(field)
	if v == "" {
		return decimal.Zero
	}
	d, err := core.ParseAmount(v)
	if err != nil {
		c.note(field, v, "0")
		return decimal.Zero
	}
	return d
}

func (c *cells) nullAmount(field string) decimal.NullDecimal {
	v := c.raw(field)
	if v == "" {
		return decimal.NullDecimal{}
	}
	d, err := core.ParseAmount(v)
	if err != nil {
		c.note(field, v, "null")
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (c *cells) optInt64(field string) *int64 {
	v := c.raw(field)
	if v == "" {
		return nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return &n
	}
	// Spreadsheet tools sometimes widen integers to "7.0".
	if d, err := decimal.NewFromString(v); err == nil && d.IsInteger() {
		n := d.IntPart()
		return &n
	}
	c.note(field, v, "null")
	return nil
}

func (c *cells) optInt(field string, min, max int) *int {
	n := c.optInt64(field)
	if n == nil {
		return nil
	}
	if *n < int64(min) || *n > int64(max) {
		c.note(field, c.raw(field), "null")
		return nil
	}
	v := int(*n)
	return &v
}

func (c *cells) boolean(field string, def bool) bool {
	v := strings.ToLower(c.raw(field))
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	case "":
		return def
	}
	c.note(field, v, strconv.FormatBool(def))
	return def
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseAnyTime(v string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// timestamp defaults missing or unparseable values to now.
func (c *cells) timestamp(field string) time.Time {
	v := c.raw(field)
	if t, ok := parseAnyTime(v); ok {
		return t
	}
	c.note(field, v, "now")
	return c.now
}

func (c *cells) optTime(field string) *time.Time {
	v := c.raw(field)
	if v == "" {
		return nil
	}
	if t, ok := parseAnyTime(v); ok {
		return &t
	}
	c.note(field, v, "null")
	return nil
}

func (c *cells) hobbies(field string) []string {
	v := c.raw(field)
	if v == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil || out == nil {
		c.note(field, v, "[]")
		return []string{}
	}
	return out
}

func (c *cells) groupType(field string) core.GroupType {
	v := core.GroupType(strings.ToUpper(c.raw(field)))
	if v.IsValid() {
		return v
	}
	c.note(field, string(v), string(core.GroupTypeBoth))
	return core.GroupTypeBoth
}

func (c *cells) mode(field string) core.AssignmentMode {
	v := c.raw(field)
	for _, m := range []core.AssignmentMode{core.ModeGroup, core.ModeMember} {
		if strings.EqualFold(v, string(m)) {
			return m
		}
	}
	c.note(field, v, string(core.ModeGroup))
	return core.ModeGroup
}

// Row sanitizers. Each reads only its allow-listed columns; anything else in the
// row is discarded. Tenant ids are left empty for the importer to bind.

func sanitizeGroup(c *cells) core.Group {
	return core.Group{
		ID:          c.raw("id"),
		Name:        c.str("name"),
		Type:        c.groupType("type"),
		FeeMode:     c.mode("feeMode"),
		SalaryMode:  c.mode("salaryMode"),
		GroupFee:    c.amount("groupFee"),
		GroupSalary: c.amount("groupSalary"),
		CreatedAt:   c.timestamp("createdAt"),
		UpdatedAt:   c.timestamp("updatedAt"),
	}
}

func sanitizeMember(c *cells) core.Member {
	return core.Member{
		ID:           c.raw("id"),
		GroupID:      c.raw("groupId"),
		MemberNo:     c.optInt64("memberNo"),
		Name:         c.str("name"),
		Email:        c.optStr("email"),
		Phone:        c.optStr("phone"),
		Address:      c.optStr("address"),
		JoiningDate:  c.optTime("joiningDate"),
		Balance:      c.nullAmount("balance"),
		CustomFee:    c.nullAmount("customFee"),
		CustomSalary: c.nullAmount("customSalary"),
		Hobbies:      c.hobbies("hobbies"),
		CriteriaVal:  c.boolean("criteriaVal", false),
		IsActive:     c.boolean("isActive", true),
		CreatedAt:    c.timestamp("createdAt"),
		UpdatedAt:    c.timestamp("updatedAt"),
	}
}

func sanitizeUser(c *cells) core.User {
	return core.User{
		ID:        c.raw("id"),
		Name:      c.str("name"),
		Email:     c.raw("email"),
		Role:      c.raw("role"),
		IsActive:  c.boolean("isActive", true),
		CreatedAt: c.timestamp("createdAt"),
		UpdatedAt: c.timestamp("updatedAt"),
	}
}

func sanitizeFavorite(c *cells) core.UserFavoriteGroup {
	return core.UserFavoriteGroup{
		ID:        c.raw("id"),
		UserID:    c.raw("userId"),
		GroupID:   c.raw("groupId"),
		CreatedAt: c.timestamp("createdAt"),
	}
}

// sanitizeStructure nulls out blank owner ids.
func sanitizeStructure(c *cells, st core.StructureType) core.Structure {
	return core.Structure{
		ID:        c.raw("id"),
		Type:      st,
		GroupID:   c.optStr("groupId"),
		MemberID:  c.optStr("memberId"),
		Name:      c.str("name"),
		Amount:    c.amount("amount"),
		CreatedAt: c.timestamp("createdAt"),
		UpdatedAt: c.timestamp("updatedAt"),
	}
}

func sanitizeFinanceRecord(c *cells) core.FinanceRecord {
	st, err := core.ParseStructureType(c.raw("structureType"))
	if err != nil {
		c.note("structureType", c.raw("structureType"), string(core.StructureFee))
		st = core.StructureFee
	}
	return core.FinanceRecord{
		ID:             c.raw("id"),
		MemberID:       c.raw("memberId"),
		StructureID:    c.raw("structureId"),
		StructureType:  st,
		AmountExpected: c.amount("amountExpected"),
		AmountPaid:     c.amount("amountPaid"),
		Month:          c.optInt("month", 0, 11),
		Year:           c.optInt("year", 1, 9999),
		DueDate:        c.optTime("dueDate"),
		PaidDate:       c.optTime("paidDate"),
		Note:           c.str("note"),
		CreatedAt:      c.timestamp("createdAt"),
		UpdatedAt:      c.timestamp("updatedAt"),
	}
}

func sanitizeAttendance(c *cells) core.Attendance {
	return core.Attendance{
		ID:        c.raw("id"),
		GroupID:   c.raw("groupId"),
		Date:      c.timestamp("date"),
		CreatedAt: c.timestamp("createdAt"),
		UpdatedAt: c.timestamp("updatedAt"),
	}
}

func sanitizeAttendanceRecord(c *cells) core.AttendanceRecord {
	return core.AttendanceRecord{
		ID:           c.raw("id"),
		AttendanceID: c.raw("attendanceId"),
		MemberID:     c.raw("memberId"),
		Status:       c.raw("status"),
		CreatedAt:    c.timestamp("createdAt"),
		UpdatedAt:    c.timestamp("updatedAt"),
	}
}
