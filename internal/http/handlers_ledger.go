package http

import (
	"net/http"

	"feeledger/internal/log"
)

// handleLedgerGroups returns group-wise ledgers, optionally narrowed with
// groupIds=a,b. Unknown group ids are skipped.
func (s *Server) handleLedgerGroups(w http.ResponseWriter, r *http.Request) {
	params, err := s.ParseLedgerParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tenantID := tenantOf(r)

	groups, err := s.deps.Ledger.AggregateGroups(r.Context(), tenantID, splitList(r.URL.Query().Get("groupIds")), params.SessionYear, params.StructureType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Group ledgers aggregated",
		log.NewFields().WithLedger(params.SessionYear, string(params.StructureType)).ToSlice()...)
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionYear":   params.SessionYear,
		"structureType": params.StructureType,
		"groups":        groups,
	})
}

func (s *Server) handleLedgerGroup(w http.ResponseWriter, r *http.Request) {
	params, err := s.ParseLedgerParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	gl, err := s.deps.Ledger.AggregateGroup(r.Context(), tenantOf(r), r.PathValue("id"), params.SessionYear, params.StructureType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gl)
}

func (s *Server) handleLedgerSummary(w http.ResponseWriter, r *http.Request) {
	params, err := s.ParseLedgerParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tl, err := s.deps.Ledger.AggregateTenant(r.Context(), tenantOf(r), params.SessionYear, params.StructureType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}
