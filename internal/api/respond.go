package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gwi.com/traegpt/internal/core"
	"gwi.com/traegpt/internal/store"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps service errors onto HTTP status codes. Upstream failures keep the provider's status.
func statusFor(err error) int {
	var upstream *core.UpstreamError
	switch {
	case errors.Is(err, core.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, core.ErrNotConfigured):
		return http.StatusInternalServerError
	case errors.As(err, &upstream):
		return upstream.Status
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeProxyError reports a failed provider call. Upstream bodies are passed through as detail.
func writeProxyError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: core.UserMessage(&core.OpError{Op: op, Err: err})}

	var upstream *core.UpstreamError
	if errors.As(err, &upstream) {
		resp.Detail = upstream.Body
		resp.Status = upstream.Status
	}
	if status >= http.StatusInternalServerError {
		slog.Error("proxy request failed", "path", r.URL.Path, "op", op, "error", err)
	} else {
		slog.Warn("proxy request failed", "path", r.URL.Path, "op", op, "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}
