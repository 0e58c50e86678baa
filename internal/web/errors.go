package web

// errors.go turns handler errors into JSON responses. The technical error is
// logged with the request ID; the client receives the mapped user message
// and its support code.

import (
	"encoding/json"
	"net/http"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/logging"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message with status.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := integrity.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	writeJSON(w, r, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v with status. Encoding errors are only logged since
// the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
