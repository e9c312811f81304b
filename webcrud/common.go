package webcrud

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/axgrid/raadmin"
	"github.com/axgrid/raadmin/transport"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusFor maps an operation error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, transport.ErrMalformed), raadmin.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, raadmin.ErrNotFound):
		return http.StatusNotFound
	case raadmin.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(status int, err error) ErrorResponse {
	code := "internal_error"
	msg := "internal server error"
	switch status {
	case http.StatusBadRequest:
		code, msg = "bad_request", err.Error()
	case http.StatusNotFound:
		code, msg = "not_found", err.Error()
	case http.StatusConflict:
		code, msg = "conflict", err.Error()
	}
	return ErrorResponse{Error: code, Message: msg}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
