package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GenericErrorMessage is used when a failed response carries no "error" field.
const GenericErrorMessage = "generic_error"

// ErrInvalidRequest is returned for requests rejected before any network call.
var ErrInvalidRequest = errors.New("invalid request")

// APIError reports a response from the server with a non-success status.
type APIError struct {
	// Message is the server supplied "error" field, or GenericErrorMessage.
	Message string
	// Status is the HTTP status code of the response.
	Status int
	// Detail holds a string "detail" field when the server sent one.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error (status %d): %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// TransportError reports a call that did not produce a usable response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// errorBody is the subset of an error response the client understands.
// Fields are raw so that non-string values fall back instead of failing.
type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// NewAPIError builds an APIError from a failed response's status and body.
// Bodies that are not JSON, or carry no string "error" field, produce
// GenericErrorMessage.
func NewAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		Message: GenericErrorMessage,
		Status:  status,
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}

	var message string
	if json.Unmarshal(parsed.Error, &message) == nil && message != "" {
		apiErr.Message = message
	}

	var detail string
	if json.Unmarshal(parsed.Detail, &detail) == nil {
		apiErr.Detail = detail
	}

	return apiErr
}
