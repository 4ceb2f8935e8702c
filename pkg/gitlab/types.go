package gitlab

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Operations reported in RegistrationError.Op.
const (
	OpRegister   = "register"
	OpUnregister = "unregister"
	OpVerify     = "verify"
)

// Sentinel errors for runner API operations.
var (
	// ErrMissingToken is returned when a call is made without a token.
	ErrMissingToken = errors.New("token is required")
	// ErrIncompleteResponse is returned when a successful registration lacks id or token.
	ErrIncompleteResponse = errors.New("registration response is missing id or token")
)

// RegistrationResult is the body returned by a successful registration.
type RegistrationResult struct {
	ID    int64  `json:"id"`
	Token string `json:"token"`
}

// UnregisterStatus is the fixed marker reported after a successful unregister.
type UnregisterStatus struct {
	Status string `json:"status"`
}

// StatusSuccess is the only UnregisterStatus value.
const StatusSuccess = "success"

// errorResponse is the error body shape GitLab uses.
type errorResponse struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

// RegistrationError wraps a failed call against the runner API: either a
// non-2xx status (StatusCode and Body set) or a transport failure (Err set).
type RegistrationError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RegistrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gitlab runner failed to %s", e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if msg := e.message(); msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// message extracts the upstream message from Body, falling back to the raw body.
func (e *RegistrationError) message() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return ""
	}
	var resp errorResponse
	if json.Unmarshal([]byte(body), &resp) == nil {
		if len(resp.Message) > 0 {
			var s string
			if json.Unmarshal(resp.Message, &s) == nil {
				return s
			}
			return string(resp.Message)
		}
		if resp.Error != "" {
			return resp.Error
		}
	}
	return body
}

func newStatusError(op string, status int, body []byte) *RegistrationError {
	return &RegistrationError{Op: op, StatusCode: status, Body: string(body)}
}
