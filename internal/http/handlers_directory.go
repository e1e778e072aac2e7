package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
	"feeledger/internal/services"
)

type createGroupRequest struct {
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	FeeMode     string           `json:"feeMode"`
	SalaryMode  string           `json:"salaryMode"`
	GroupFee    *decimal.Decimal `json:"groupFee"`
	GroupSalary *decimal.Decimal `json:"groupSalary"`
}

type groupResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        core.GroupType  `json:"type"`
	FeeMode     string          `json:"feeMode"`
	SalaryMode  string          `json:"salaryMode"`
	GroupFee    decimal.Decimal `json:"groupFee"`
	GroupSalary decimal.Decimal `json:"groupSalary"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	g := core.Group{
		Name:       sanitizeInput(req.Name),
		Type:       core.GroupType(sanitizeInput(req.Type)),
		FeeMode:    core.AssignmentMode(sanitizeInput(req.FeeMode)),
		SalaryMode: core.AssignmentMode(sanitizeInput(req.SalaryMode)),
	}
	if req.GroupFee != nil {
		g.GroupFee = *req.GroupFee
	}
	if req.GroupSalary != nil {
		g.GroupSalary = *req.GroupSalary
	}

	created, err := s.deps.Directory.CreateGroup(r.Context(), tenantOf(r), g)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(tenantOf(r))
	writeJSON(w, http.StatusCreated, groupResponse{
		ID: created.ID, Name: created.Name, Type: created.Type,
		FeeMode: string(created.FeeMode), SalaryMode: string(created.SalaryMode),
		GroupFee: created.GroupFee, GroupSalary: created.GroupSalary,
		CreatedAt: created.CreatedAt,
	})
}

type createMemberRequest struct {
	GroupID      string           `json:"groupId"`
	MemberNo     *int64           `json:"memberNo"`
	Name         string           `json:"name"`
	Email        *string          `json:"email"`
	Phone        *string          `json:"phone"`
	Address      *string          `json:"address"`
	JoiningDate  *string          `json:"joiningDate"`
	Balance      *decimal.Decimal `json:"balance"`
	CustomFee    *decimal.Decimal `json:"customFee"`
	CustomSalary *decimal.Decimal `json:"customSalary"`
	Hobbies      []string         `json:"hobbies"`
	CriteriaVal  bool             `json:"criteriaVal"`
	IsActive     *bool            `json:"isActive"`
}

type memberResponse struct {
	ID           string              `json:"id"`
	GroupID      string              `json:"groupId"`
	MemberNo     *int64              `json:"memberNo,omitempty"`
	Name         string              `json:"name"`
	Email        *string             `json:"email,omitempty"`
	Phone        *string             `json:"phone,omitempty"`
	Address      *string             `json:"address,omitempty"`
	JoiningDate  *time.Time          `json:"joiningDate,omitempty"`
	Balance      decimal.NullDecimal `json:"balance"`
	CustomFee    decimal.NullDecimal `json:"customFee"`
	CustomSalary decimal.NullDecimal `json:"customSalary"`
	Hobbies      []string            `json:"hobbies"`
	CriteriaVal  bool                `json:"criteriaVal"`
	IsActive     bool                `json:"isActive"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	joining, err := parseDate("joiningDate", req.JoiningDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m := core.Member{
		GroupID:      sanitizeInput(req.GroupID),
		MemberNo:     req.MemberNo,
		Name:         sanitizeInput(req.Name),
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		JoiningDate:  joining,
		Balance:      nullDecimal(req.Balance),
		CustomFee:    nullDecimal(req.CustomFee),
		CustomSalary: nullDecimal(req.CustomSalary),
		Hobbies:      req.Hobbies,
		CriteriaVal:  req.CriteriaVal,
		IsActive:     req.IsActive == nil || *req.IsActive,
	}

	created, err := s.deps.Directory.CreateMember(r.Context(), tenantOf(r), m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(tenantOf(r))
	writeJSON(w, http.StatusCreated, memberResponse{
		ID: created.ID, GroupID: created.GroupID, MemberNo: created.MemberNo, Name: created.Name,
		Email: created.Email, Phone: created.Phone, Address: created.Address,
		JoiningDate: created.JoiningDate, Balance: created.Balance,
		CustomFee: created.CustomFee, CustomSalary: created.CustomSalary,
		Hobbies: created.Hobbies, CriteriaVal: created.CriteriaVal, IsActive: created.IsActive,
		CreatedAt: created.CreatedAt,
	})
}

type createStructureRequest struct {
	Type     string          `json:"type"`
	GroupID  string          `json:"groupId"`
	MemberID string          `json:"memberId"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
}

type structureResponse struct {
	ID       string             `json:"id"`
	Type     core.StructureType `json:"type"`
	GroupID  *string            `json:"groupId,omitempty"`
	MemberID *string            `json:"memberId,omitempty"`
	Name     string             `json:"name"`
	Amount   decimal.Decimal    `json:"amount"`
}

func (s *Server) handleCreateStructure(w http.ResponseWriter, r *http.Request) {
	var req createStructureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := core.ParseStructureType(req.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.deps.Directory.AddStructure(r.Context(), tenantOf(r), services.NewStructure{
		Type:     st,
		GroupID:  sanitizeInput(req.GroupID),
		MemberID: sanitizeInput(req.MemberID),
		Name:     sanitizeInput(req.Name),
		Amount:   req.Amount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(tenantOf(r))
	writeJSON(w, http.StatusCreated, structureResponse{
		ID: created.ID, Type: created.Type, GroupID: created.GroupID, MemberID: created.MemberID,
		Name: created.Name, Amount: created.Amount,
	})
}
