package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const maxBodySize = 4 << 20

// APIError is a non-2xx response from the REST service.
type APIError struct {
	StatusCode int
	// Message is the server's "message" field, when the body is a TileDB error document.
	Message   string
	Body      string
	RequestID string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("tiledb cloud: status %d: %s", e.StatusCode, msg)
}

// Unauthorized reports whether the server rejected the credentials.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsUnauthorized reports whether err is an APIError for rejected credentials.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		RequestID:  resp.Request.Header.Get(RequestIDHeader),
	}
	var doc struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &doc) == nil {
		apiErr.Message = doc.Message
	}
	return apiErr
}
