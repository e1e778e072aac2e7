package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
	"feeledger/internal/services"
)

type financeRecordRequest struct {
	MemberID       string           `json:"memberId"`
	StructureID    *string          `json:"structureId"`
	StructureType  *string          `json:"structureType"`
	AmountExpected *decimal.Decimal `json:"amountExpected"`
	AmountPaid     *decimal.Decimal `json:"amountPaid"`
	Month          *int             `json:"month"`
	Year           *int             `json:"year"`
	DueDate        *string          `json:"dueDate"`
	PaidDate       *string          `json:"paidDate"`
	Note           *string          `json:"note"`
}

type financeRecordResponse struct {
	ID             string             `json:"id"`
	MemberID       string             `json:"memberId"`
	StructureID    string             `json:"structureId"`
	StructureType  core.StructureType `json:"structureType"`
	AmountExpected decimal.Decimal    `json:"amountExpected"`
	AmountPaid     decimal.Decimal    `json:"amountPaid"`
	Month          *int               `json:"month,omitempty"`
	Year           *int               `json:"year,omitempty"`
	DueDate        *time.Time         `json:"dueDate,omitempty"`
	PaidDate       *time.Time         `json:"paidDate,omitempty"`
	Note           string             `json:"note,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func toFinanceRecordResponse(rec core.FinanceRecord) financeRecordResponse {
	return financeRecordResponse{
		ID:             rec.ID,
		MemberID:       rec.MemberID,
		StructureID:    rec.StructureID,
		StructureType:  rec.StructureType,
		AmountExpected: rec.AmountExpected,
		AmountPaid:     rec.AmountPaid,
		Month:          rec.Month,
		Year:           rec.Year,
		DueDate:        rec.DueDate,
		PaidDate:       rec.PaidDate,
		Note:           rec.Note,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// dates parses the optional due and paid dates of req.
func (req financeRecordRequest) dates() (due, paid *time.Time, err error) {
	if due, err = parseDate("dueDate", req.DueDate); err != nil {
		return nil, nil, err
	}
	if paid, err = parseDate("paidDate", req.PaidDate); err != nil {
		return nil, nil, err
	}
	return due, paid, nil
}

func (s *Server) handleCreateFinanceRecord(w http.ResponseWriter, r *http.Request) {
	var req financeRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	due, paid, err := req.dates()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	in := services.NewFinanceRecord{
		MemberID:       sanitizeInput(req.MemberID),
		AmountExpected: req.AmountExpected,
		AmountPaid:     req.AmountPaid,
		Month:          req.Month,
		Year:           req.Year,
		DueDate:        due,
		PaidDate:       paid,
	}
	if req.StructureID != nil {
		in.StructureID = sanitizeInput(*req.StructureID)
	}
	if req.StructureType != nil {
		in.StructureType = core.StructureType(strings.ToUpper(sanitizeInput(*req.StructureType)))
	}
	if req.Note != nil {
		in.Note = sanitizeInput(*req.Note)
	}

	rec, err := s.deps.Finance.Create(r.Context(), tenantOf(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(tenantOf(r))
	writeJSON(w, http.StatusCreated, toFinanceRecordResponse(rec))
}

func (s *Server) handleUpdateFinanceRecord(w http.ResponseWriter, r *http.Request) {
	var req financeRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.MemberID != "" {
		s.writeError(w, r, core.Validation("memberId", "memberId cannot be changed"))
		return
	}
	due, paid, err := req.dates()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	patch := services.FinanceRecordPatch{
		AmountExpected: req.AmountExpected,
		AmountPaid:     req.AmountPaid,
		Month:          req.Month,
		Year:           req.Year,
		DueDate:        due,
		PaidDate:       paid,
	}
	if req.StructureID != nil {
		v := sanitizeInput(*req.StructureID)
		patch.StructureID = &v
	}
	if req.StructureType != nil {
		st := core.StructureType(strings.ToUpper(sanitizeInput(*req.StructureType)))
		patch.StructureType = &st
	}
	if req.Note != nil {
		v := sanitizeInput(*req.Note)
		patch.Note = &v
	}

	rec, err := s.deps.Finance.Update(r.Context(), tenantOf(r), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(tenantOf(r))
	writeJSON(w, http.StatusOK, toFinanceRecordResponse(rec))
}

// handleListFinanceRecords filters by memberId, structureType and year.
func (s *Server) handleListFinanceRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.FinanceRecordFilter{MemberID: strings.TrimSpace(q.Get("memberId"))}
	if v := strings.TrimSpace(q.Get("structureType")); v != "" {
		st, err := core.ParseStructureType(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		f.StructureType = st
	}
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, core.Validation("year", "year must be a number"))
			return
		}
		f.Year = &y
	}

	recs, err := s.deps.Finance.List(r.Context(), tenantOf(r), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]financeRecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toFinanceRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}
