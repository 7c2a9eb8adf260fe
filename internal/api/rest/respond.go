package rest

import (
	"encoding/json"
	"net/http"

	"github.com/dtroode/identity-server/internal/apierrors"
)

// ErrorResponse is the body of every non 2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusResponse acknowledges an operation without a resource body.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_error","message":"failed to marshal response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// RespondWithError renders err through its APIError form. Anything else is a 500.
func RespondWithError(w http.ResponseWriter, err error) {
	apiErr := apierrors.From(err)
	RespondWithJSON(w, apiErr.HTTPStatus, ErrorResponse{
		Error:   string(apiErr.Kind),
		Message: apiErr.Message,
	})
}

func decodeJSON(r *http.Request, maxBytes int64, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
