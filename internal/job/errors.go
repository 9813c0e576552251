package job

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Processing error codes recorded into Job.ErrorDetails.
const (
	// CodeMissingMedia marks jobs with no media attached at all.
	CodeMissingMedia = "missing_media"
	// CodeMissingURL marks media entries without any resolvable reference.
	CodeMissingURL = "missing_url"
	// CodeMissingFile marks local media paths that do not exist.
	CodeMissingFile = "missing_file"
	// CodeBadStatus marks remote media that answered with an error status.
	CodeBadStatus = "bad_status"
	// CodeNetworkError marks remote media that could not be reached.
	CodeNetworkError = "network_error"
	// CodeUnexpected marks failures outside the known validation taxonomy.
	CodeUnexpected = "unexpected"
)

// ProcessingError represents a handled failure while processing a job.
// It carries a stable machine code and a context payload used both for
// structured logging and for the serialized error details.
type ProcessingError struct {
	Message string
	Code    string
	Context map[string]any
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// NewProcessingError builds a ProcessingError.
func NewProcessingError(message, code string, context map[string]any) *ProcessingError {
	return &ProcessingError{Message: message, Code: code, Context: context}
}

// AsProcessingError extracts a ProcessingError from err, if present.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ErrorDetails is the canonical JSON shape stored in Job.ErrorDetails.
type ErrorDetails struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Context map[string]any `json:"context,omitempty"`
}

// MarshalErrorDetails serializes the payload for persistence. Context values
// that cannot be serialized are dropped rather than failing the job update.
func MarshalErrorDetails(message, code string, context map[string]any) string {
	payload := ErrorDetails{Message: message, Code: code, Context: context}
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(ErrorDetails{Message: message, Code: code})
	}
	return string(data)
}

// ParseErrorDetails deserializes a persisted error payload.
func ParseErrorDetails(raw string) (ErrorDetails, error) {
	var details ErrorDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return ErrorDetails{}, fmt.Errorf("parse error details: %w", err)
	}
	return details, nil
}
