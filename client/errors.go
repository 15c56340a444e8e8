package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FieldError is one entry of a server error payload. Param names the
// offending request field when the error is field-scoped.
type FieldError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

func (e FieldError) String() string {
	if e.Param != "" {
		return e.Param + ": " + e.Message
	}
	return e.Message
}

// APIError is a domain error: the server answered with a non-success
// status and a structured errors list. It is distinct from a transport
// failure so callers can render field-level validation messages.
type APIError struct {
	Status int          `json:"status"`
	Errors []FieldError `json:"errors"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.String()
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, strings.Join(msgs, "; "))
}

// FieldErrors returns the errors scoped to the given request parameter.
func (e *APIError) FieldErrors(param string) []FieldError {
	var out []FieldError
	for _, fe := range e.Errors {
		if fe.Param == param {
			out = append(out, fe)
		}
	}
	return out
}

// AsAPIError unwraps err into an *APIError if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// SessionGone reports whether the response status signals an expired or
// invalidated session. The dispatcher has already cleared the stored
// session token by the time a caller sees this status.
func SessionGone(status int) bool {
	return status == http.StatusGone
}
