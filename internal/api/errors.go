package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/arb"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/service"
	"github.com/hetulpatel/pricearb/internal/storage"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

var errBadRequest = errors.New("bad request")

func respondError(w http.ResponseWriter, statusCode int, detail string) {
	respondJSON(w, statusCode, ErrorResponse{Detail: detail})
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logging.Warnf("[api] encode response: %v", err)
		}
	}
}

func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// mapServiceError picks the status code for an error returned by the tracker.
func mapServiceError(err error) int {
	switch {
	case errors.Is(err, storage.ErrSnapshotNotFound), errors.Is(err, service.ErrNoListings):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, arb.ErrMalformedListing),
		errors.Is(err, arb.ErrInvalidThreshold),
		errors.Is(err, arb.ErrInvalidPrice),
		errors.Is(err, storage.ErrInvalidListing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status. action prefixes
// internal errors only; client errors are reported as they are.
func respondServiceError(w http.ResponseWriter, action string, err error) {
	status := mapServiceError(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		logging.Errorf("[api] %s: %v", action, err)
		detail = fmt.Sprintf("Error %s: %v", action, err)
	}
	respondError(w, status, detail)
}

func intParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", errBadRequest, name, min, max)
	}
	return n, nil
}

func optionalIntParam(r *http.Request, name string, min int) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return nil, fmt.Errorf("%w: %s must be an integer >= %d", errBadRequest, name, min)
	}
	return &n, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, name)
	}
	return b, nil
}

func decimalParam(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", errBadRequest, name)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %s must be >= 0", errBadRequest, name)
	}
	return &d, nil
}
