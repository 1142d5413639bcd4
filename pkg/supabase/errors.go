package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from GoTrue or PostgREST.
type APIError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d (%s): %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// PublicMessage is the provider's own message, safe to show an administrator.
// Server-side failures are not passed through.
func (e *APIError) PublicMessage() string {
	if e.StatusCode >= http.StatusInternalServerError {
		return ""
	}
	return e.Message
}

// StatusCode returns the HTTP status of err if it is an *APIError, or zero.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// errorBody covers the shapes GoTrue and PostgREST use for errors.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func parseAPIError(operation string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Operation:  operation,
		StatusCode: status,
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	apiErr.Message = firstNonEmpty(eb.Msg, eb.Message, eb.ErrorDescription, eb.Error, http.StatusText(status))
	apiErr.Code = firstNonEmpty(eb.ErrorCode, rawCode(eb.Code))
	if apiErr.Code == "" && eb.Error != "" && eb.Error != apiErr.Message {
		apiErr.Code = eb.Error
	}

	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// rawCode accepts both the numeric GoTrue code and the string PostgREST code.
func rawCode(raw json.RawMessage) string {
	code := strings.Trim(string(raw), `"`)
	if code == "null" {
		return ""
	}
	return code
}
