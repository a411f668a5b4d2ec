// backend/internal/adapters/in/http/handlers/helpers.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"assetmarket/internal/application/marketplace"
	"assetmarket/internal/application/query"
	assetdom "assetmarket/internal/domain/asset"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response failed err=%v", err)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: body: %v", marketplace.ErrInvalidRequest, err)
	}
	return nil
}

// writeError maps the error taxonomy to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		log.Printf("[http] error status=%d err=%v", status, err)
	}
	writeJSON(w, status, errorBody{Error: code, Detail: err.Error()})
}

func statusFor(err error) (int, string) {
	var pe *marketplace.PersistenceError
	switch {
	case errors.Is(err, marketplace.ErrInvalidRequest),
		errors.Is(err, query.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request"
	case marketplace.IsRejected(err):
		return http.StatusConflict, "rejected"
	case errors.Is(err, assetdom.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &pe):
		return http.StatusBadGateway, "persistence_failure"
	case errors.Is(err, marketplace.ErrIdentifierIssuance):
		return http.StatusBadGateway, "identifier_issuance_failed"
	case errors.Is(err, marketplace.ErrNotConfigured):
		return http.StatusServiceUnavailable, "not_configured"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
