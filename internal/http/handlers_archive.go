package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"feeledger/internal/core"
	"feeledger/internal/log"
)

// handleExport streams the tenant's archive for ?tables=a,b&range=preset.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantOf(r)
	q := r.URL.Query()

	res, err := s.deps.Backup.Export(r.Context(), tenantID, splitList(q.Get("tables")), q.Get("range"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogArchive(r.Context(), log.OpExport, tenantID, len(res.Tables), len(res.Data))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=backup.zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// handleRestore reads the archive body, bounded by the configured ceiling,
// and restores it into the caller's tenant.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantOf(r)
	limit := s.deps.Backup.MaxArchiveBytes()

	if r.ContentLength > limit {
		s.writeError(w, r, core.SizeLimit(limit, r.ContentLength))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, core.SizeLimit(limit, limit+1))
			return
		}
		s.writeError(w, r, core.Validation("archive", "could not read request body"))
		return
	}
	if len(data) == 0 {
		s.writeError(w, r, core.Validation("archive", "request body is empty"))
		return
	}

	sum, err := s.deps.Backup.Restore(r.Context(), tenantID, data, r.URL.Query().Get("mode"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidate(tenantOf(r))

	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogArchive(r.Context(), log.OpRestore, tenantID, len(sum.Inserted), len(data))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"summary": sum,
	})
}
