package httpapi

import "net/http"

// ErrorKind enumerates the wire error taxonomy (spec §7 "Error handling
// design"). Classification happens only at this HTTP boundary; everything
// upstream returns plain Go errors.
type ErrorKind string

const (
	KindInvalidRequest  ErrorKind = "invalid_request"
	KindInvalidImage    ErrorKind = "invalid_image"
	KindInvalidSession  ErrorKind = "invalid_session"
	KindInferenceFailed ErrorKind = "inference_failed"
)

// APIError is the `{ "error": "<kind>", "message": "<human>" }` wire shape.
type APIError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Cause }

// Status maps the error's kind to an HTTP status code.
func (e *APIError) Status() int {
	switch e.Kind {
	case KindInvalidRequest, KindInvalidImage:
		return http.StatusBadRequest
	case KindInvalidSession, KindInferenceFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func invalidRequest(message string) *APIError {
	return &APIError{Kind: KindInvalidRequest, Message: message}
}

func invalidImage(message string, cause error) *APIError {
	return &APIError{Kind: KindInvalidImage, Message: message, Cause: cause}
}

func inferenceFailed(message string, cause error) *APIError {
	return &APIError{Kind: KindInferenceFailed, Message: message, Cause: cause}
}
