package api

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/sashu2310/streamgate/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Error codes carried in the error envelope.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidJSON         = "INVALID_JSON"
	CodeDuplicateID         = "DUPLICATE_ID"
	CodeDuplicateURL        = "DUPLICATE_URL"
	CodeOutOfRange          = "VALUE_OUT_OF_RANGE"
	CodeNotFound            = "NOT_FOUND"
	CodePersistenceFailure  = "PERSISTENCE_FAILURE"
	CodeNotificationFailure = "NOTIFICATION_FAILURE"
	CodeUnavailable         = "SERVICE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Details: details})
}

// writeStoreError maps store errors onto 400/404 responses.
func writeStoreError(w http.ResponseWriter, err error) {
	var details interface{}
	var ve *store.ValidationError
	if errors.As(err, &ve) {
		details = map[string]string{"field": ve.Field}
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusBadRequest, CodeDuplicateID, err.Error(), details)
	case errors.Is(err, store.ErrDuplicateURL):
		writeError(w, http.StatusBadRequest, CodeDuplicateURL, err.Error(), details)
	case errors.Is(err, store.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, CodeOutOfRange, err.Error(), details)
	case ve != nil:
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error(), details)
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
	}
}
