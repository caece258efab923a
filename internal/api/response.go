package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrRequestFailed is returned when a request could not be sent even after
// retrying, e.g. because the server is unreachable.
var ErrRequestFailed = errors.New("failed to execute request after retrying")

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Endpoint   string
	Header     http.Header

	// Body is empty for successful downloads, which are streamed to disk.
	Body []byte
}

// HasFailed reports whether the status code is outside 2xx.
func (r *Response) HasFailed() bool {
	return r.StatusCode < 200 || r.StatusCode >= 300
}

// IsUnauthorized reports a 401 answer.
func (r *Response) IsUnauthorized() bool {
	return r.StatusCode == http.StatusUnauthorized
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response of %s: %w", r.Endpoint, err)
	}
	return nil
}

// JSON returns the body as a JSON object. Bodies that are not objects
// yield an empty map.
func (r *Response) JSON() map[string]any {
	var m map[string]any
	if err := json.Unmarshal(r.Body, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// RequestError reports an API call that returned a failed response.
type RequestError struct {
	Response *Response
	Message  string
}

// NewRequestError wraps a failed response with a description of what the
// caller tried to do.
func NewRequestError(resp *Response, message string) *RequestError {
	return &RequestError{Response: resp, Message: message}
}

func (e *RequestError) Error() string {
	if e.Response == nil {
		return e.Message
	}
	body := string(e.Response.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: %s returned status %d", e.Message, e.Response.Endpoint, e.Response.StatusCode)
	}
	return fmt.Sprintf("%s: %s returned status %d: %s", e.Message, e.Response.Endpoint, e.Response.StatusCode, body)
}

// Check returns a RequestError when resp has failed, nil otherwise.
func Check(resp *Response, message string) error {
	if resp.HasFailed() {
		return NewRequestError(resp, message)
	}
	return nil
}
