package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"finora/internal/backup"
	"finora/internal/core"
	"finora/internal/exchange"
	"finora/internal/filter"
	"finora/internal/ledger"
	applog "finora/internal/log"
	"finora/internal/pin"
	"finora/internal/remote"
)

const maxBodyBytes = 8 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`

	AttemptsLeft      *int   `json:"attemptsLeft,omitempty"`
	RetryAfterSeconds *int64 `json:"retryAfterSeconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// errorResponse maps a service error to its status and body.
func errorResponse(err error) (int, errorBody) {
	var (
		ve     *core.ValidationError
		locked *pin.LockedError
		wrong  *pin.WrongPinError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, errorBody{Error: ve.Error(), Code: "validation_error", Field: ve.Field}
	case errors.As(err, &locked):
		secs := int64(math.Ceil(locked.Remaining.Seconds()))
		return http.StatusLocked, errorBody{Error: locked.Error(), Code: "pin_locked", RetryAfterSeconds: &secs}
	case errors.As(err, &wrong):
		left := wrong.AttemptsLeft
		return http.StatusUnauthorized, errorBody{Error: wrong.Error(), Code: "wrong_pin", AttemptsLeft: &left}
	case errors.Is(err, errPINRequired):
		return http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "pin_required"}
	case errors.Is(err, pin.ErrNoPIN):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "pin_not_set"}
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, remote.ErrPermissionDenied):
		return http.StatusForbidden, errorBody{Error: remote.ErrPermissionDenied.Error(), Code: "permission_denied"}
	case errors.Is(err, remote.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: "remote backup service is unavailable, try again later", Code: "unavailable"}
	case errors.Is(err, backup.ErrRemoteDisabled):
		return http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "remote_disabled"}
	case errors.Is(err, backup.ErrNoLocalData):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "no_local_data"}
	case errors.Is(err, exchange.ErrInvalidFormat),
		errors.Is(err, errBadRequest),
		errors.Is(err, filter.ErrInvalidRange),
		errors.Is(err, filter.ErrInvalidFacet),
		errors.Is(err, core.ErrInvalidMonthKey):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithUser(r.PathValue("uid")))
	} else {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op, applog.FieldError, err, applog.FieldStatusCode, status)
	}
	if body.RetryAfterSeconds != nil {
		w.Header().Set("Retry-After", fmt.Sprint(*body.RetryAfterSeconds))
	}
	writeJSON(w, status, body)
}

var errBadRequest = errors.New("malformed request body")

// decodeJSON reads a single JSON value from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON value", errBadRequest)
	}
	return nil
}
