package http

import (
	"encoding/json"
	"net/http"

	"caja/internal/commands"
	"caja/internal/core"
	"caja/internal/log"
)

// statusFor maps an error kind name to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "":
		return http.StatusOK
	case core.KindValidation.String(), core.KindInsufficientFunds.String(), core.KindCategoryMismatch.String():
		return http.StatusUnprocessableEntity
	case core.KindConflict.String(), core.KindState.String():
		return http.StatusConflict
	case core.KindNotFound.String():
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeResponse writes the envelope with a status derived from its error kind.
func writeResponse(w http.ResponseWriter, r *http.Request, resp commands.Response) {
	status := http.StatusOK
	if !resp.Success {
		status = statusFor(resp.ErrorKind)
	}
	writeJSON(w, r, status, resp)
}

func writeCreated(w http.ResponseWriter, r *http.Request, resp commands.Response) {
	if resp.Success {
		writeJSON(w, r, http.StatusCreated, resp)
		return
	}
	writeResponse(w, r, resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", log.FieldError, err)
	}
}
