package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx (or unusable 2xx) answer from the remote API.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

// Error implements error interface
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote api %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote api %d", e.Status)
}

func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return &APIError{Status: status, Message: bodyMessage(body), Body: body}
}

// bodyMessage finds a human readable message in an error body: the "error"
// field of a JSON object (or its "message" when "error" is an object), else
// the body itself when it is a JSON string or plain text.
func bodyMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		if raw, ok := obj["error"]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		return ""
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	if trimmed[0] == '<' {
		// HTML error pages are not worth showing.
		return ""
	}
	return trimmed
}

// ErrorMessage returns the best human readable message for err:
// the remote error field, else the string body, else err.Error(), else fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
