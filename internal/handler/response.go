package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bengkel-pos/api/internal/database"
	ierr "github.com/bengkel-pos/api/internal/errors"
	"github.com/bengkel-pos/api/internal/lineitem"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/bengkel-pos/api/internal/service"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps err to its class status and writes the first user facing
// hint with any reportable details. Unclassified errors are logged and
// reported as 500.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := ierr.HTTPStatusFromErr(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "error", err)
	}

	resp := errorResponse{Error: displayMessage(err), Details: safeDetails(err)}

	var invalid *lineitem.RowInvalidError
	if errors.As(err, &invalid) {
		resp.Details["row_id"] = invalid.RowID
		resp.Details["violations"] = invalid.Violations
	}
	var stageErr *service.StageError
	if errors.As(err, &stageErr) {
		resp.Details["stage"] = string(stageErr.Stage)
	}
	if len(resp.Details) == 0 {
		resp.Details = nil
	}

	writeJSON(w, status, resp)
}

func displayMessage(err error) string {
	// GetAllHints is a post-order traversal, the first non-empty hint is the innermost
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	if ierr.HTTPStatusFromErr(err) >= http.StatusInternalServerError {
		return "An unexpected error occurred"
	}
	return ierr.Hint(err)
}

func safeDetails(err error) map[string]any {
	return ierr.ReportableDetails(err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// garageID parses the {gid} route parameter.
func garageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	gid, err := uuid.Parse(chi.URLParam(r, "gid"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid garage ID")
		return uuid.Nil, false
	}
	return gid, true
}

// repairOrderID parses the {id} route parameter.
func repairOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid repair order ID")
		return uuid.Nil, false
	}
	return id, true
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	return database.NumericToDecimal(n).StringFixed(2)
}

func optionalNumeric(n pgtype.Numeric) *string {
	if !n.Valid {
		return nil
	}
	s := numericToString(n)
	return &s
}

func optionalUUID(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}
