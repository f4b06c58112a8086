package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrRetriesExhausted is matched by every *ExhaustedError.
var ErrRetriesExhausted = errors.New("stripe: retry budget exhausted")

// ExhaustedError reports a logical request whose retry budget ran out.
// Callers decide whether that ends the process or only the current job.
type ExhaustedError struct {
	Class      FailureClass
	Attempts   int
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	API        *APIError
	Err        error
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stripe: %s retries exhausted after %d attempts", e.Class, e.Attempts)
	if e.Method != "" || e.URL != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Method, e.URL)
	}
	switch {
	case e.API != nil:
		fmt.Fprintf(&b, ": %s", e.API.Error())
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	case e.StatusCode != 0:
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	return b.String()
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRetriesExhausted}
	}
	return []error{ErrRetriesExhausted, e.Err}
}

// AsExhausted extracts an *ExhaustedError from err.
func AsExhausted(err error) (*ExhaustedError, bool) {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted, true
	}
	return nil, false
}

// APIError is the structured error payload Stripe returns with non-2xx responses.
type APIError struct {
	StatusCode  int    `json:"-"`
	RequestID   string `json:"-"`
	Type        string `json:"type"`
	Code        string `json:"code,omitempty"`
	DeclineCode string `json:"decline_code,omitempty"`
	Message     string `json:"message,omitempty"`
	Param       string `json:"param,omitempty"`
	DocURL      string `json:"doc_url,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("stripe %s (%s, HTTP %d): %s", e.Type, e.Code, e.StatusCode, msg)
	}
	return fmt.Sprintf("stripe %s (HTTP %d): %s", e.Type, e.StatusCode, msg)
}

// parseAPIError decodes a Stripe error body. It returns nil when the body is
// not a Stripe error payload.
func parseAPIError(resp *http.Response, body []byte) *APIError {
	if len(body) == 0 {
		return nil
	}
	var payload struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil {
		return nil
	}
	apiErr := payload.Error
	if resp != nil {
		apiErr.StatusCode = resp.StatusCode
		apiErr.RequestID = resp.Header.Get("Request-Id")
	}
	return apiErr
}
