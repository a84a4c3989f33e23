package rest

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// Error codes returned in the JSON error body.
const (
	errCodeNotAuthenticated = "NOT_AUTHENTICATED"
	errCodeFetchFailed      = "FETCH_FAILED"
	errCodePublishFailed    = "PUBLISH_FAILED"
	errCodeNothingToPublish = "NOTHING_TO_PUBLISH"
	errCodeAuthFailed       = "AUTH_FAILED"
	errCodeBusy             = "FETCH_IN_PROGRESS"
	errCodeSensor           = "SENSOR_FAILED"
	errCodeSensorDenied     = "SENSOR_DENIED"
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeInternal         = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorWithCode(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeError maps a service error onto a status and the user-facing message.
// The underlying cause is never written to the client.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeErrorWithCode(w, status, domain.UserMessage(err), code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSuperseded), errors.Is(err, domain.ErrFetchInProgress):
		return http.StatusConflict, errCodeBusy
	case errors.Is(err, domain.ErrNothingToPublish):
		return http.StatusUnprocessableEntity, errCodeNothingToPublish
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, errCodeNotAuthenticated
	case errors.Is(err, domain.ErrFetch):
		return http.StatusBadGateway, errCodeFetchFailed
	case errors.Is(err, domain.ErrPublish):
		return http.StatusBadGateway, errCodePublishFailed
	case errors.Is(err, domain.ErrAuthInit), errors.Is(err, domain.ErrAuthCallback):
		return http.StatusBadGateway, errCodeAuthFailed
	case errors.Is(err, domain.ErrSensorAuthorizationDenied):
		return http.StatusForbidden, errCodeSensorDenied
	case errors.Is(err, domain.ErrSensorUnavailable):
		return http.StatusServiceUnavailable, errCodeSensor
	case errors.Is(err, domain.ErrSensorSample):
		return http.StatusBadGateway, errCodeSensor
	default:
		return http.StatusInternalServerError, errCodeInternal
	}
}

func isJSONContentType(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeJSON reads a JSON body, answering 415 or 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if !isJSONContentType(r) {
		writeErrorWithCode(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", errCodeBadRequest)
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "Invalid request body", errCodeBadRequest)
		return false
	}
	return true
}
