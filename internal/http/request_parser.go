package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"feeledger/internal/core"
)

// maxJSONBody caps the size of JSON request bodies.
const maxJSONBody = 1 << 20

// LedgerParams are the query parameters shared by the ledger endpoints.
type LedgerParams struct {
	SessionYear   int
	StructureType core.StructureType
}

// ParseLedgerParams reads sessionYear and structureType, defaulting to the
// session containing now and to FEE.
func (s *Server) ParseLedgerParams(query url.Values) (LedgerParams, error) {
	params := LedgerParams{
		SessionYear:   s.deps.Calendar.YearOf(s.now()),
		StructureType: core.StructureFee,
	}

	if v := strings.TrimSpace(query.Get("sessionYear")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			return LedgerParams{}, core.Validation("sessionYear", "sessionYear must be a four-digit year")
		}
		params.SessionYear = y
	}
	if v := strings.TrimSpace(query.Get("structureType")); v != "" {
		st, err := core.ParseStructureType(v)
		if err != nil {
			return LedgerParams{}, err
		}
		params.StructureType = st
	}
	return params, nil
}

// splitList splits a comma separated query value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Validation("body", "request body is empty")
		case errors.As(err, &maxErr):
			return core.SizeLimit(maxErr.Limit, maxErr.Limit+1)
		default:
			return core.Validation("body", "invalid JSON: "+err.Error())
		}
	}
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, core.Validation(field, field+" must be YYYY-MM-DD or RFC 3339")
	}
	t = t.UTC()
	return &t, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
