package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kalambet/engram/internal/conversation"
	"github.com/kalambet/engram/internal/extract"
	"github.com/kalambet/engram/internal/ledger"
	"github.com/kalambet/engram/internal/llm"
	"github.com/kalambet/engram/internal/routing"
	"github.com/kalambet/engram/internal/vault"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// domainError maps engine failures onto the wire taxonomy. Extraction
// and destination problems are the caller's to fix; model and
// persistence failures are upstream faults worth retrying.
func domainError(w http.ResponseWriter, err error) {
	var (
		ee *extract.Error
		me *llm.ModelError
		pe *vault.PersistenceError
	)
	switch {
	case errors.As(err, &ee):
		httpError(w, http.StatusUnprocessableEntity, "extraction_error", "%v", ee)
	case errors.As(err, &me):
		httpError(w, http.StatusBadGateway, "model_error", "%v", me)
	case errors.As(err, &pe):
		httpError(w, http.StatusBadGateway, "persistence_error", "%v", pe)
	case errors.Is(err, conversation.ErrNoSession):
		httpError(w, http.StatusNotFound, "no_session", "no active session; capture something first")
	case errors.Is(err, routing.ErrBadDestination):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, ledger.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}
