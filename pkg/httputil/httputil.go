// Package httputil centralizes JSON responses and domain error translation
// so every endpoint speaks the same envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"tenantgate/pkg/domainerrors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and JSON envelope.
// Server-side failures omit the description so storage and provider details
// never leak to the client.
func WriteError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeInternal
	message := ""
	var derr *domainerrors.Error
	if errors.As(err, &derr) {
		code = derr.Code
		message = derr.Message
	}

	status := toHTTPStatus(code)
	body := map[string]string{"error": string(code)}
	if status < http.StatusInternalServerError && message != "" {
		body["error_description"] = message
	}
	WriteJSON(w, status, body)
}

func toHTTPStatus(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeInvalidTenant:
		return http.StatusNotFound
	case domainerrors.CodeMissingAuthState, domainerrors.CodeExpiredAuthState, domainerrors.CodeCSRFMismatch:
		return http.StatusBadRequest
	case domainerrors.CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
