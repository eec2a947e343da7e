package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-fleet/internal/audit"
)

// handleListAudit returns the reconciliation history, newest first.
// Query parameters: serial, action, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	res, err := s.audit.List(r.Context(), audit.Filter{
		Serial: q.Get("serial"),
		Action: q.Get("action"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("listing audit logs failed", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// queryInt parses an optional integer parameter; empty means zero.
func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
