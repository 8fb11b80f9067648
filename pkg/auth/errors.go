package auth

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every service. Handlers map these to HTTP status
// codes with httputil.WriteServiceError; compare with errors.Is.
var (
	// ErrUnauthenticated means no valid credential was presented (401)
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the caller is known but lacks the capability (403)
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the referenced alert, user, or key does not exist (404)
	ErrNotFound = errors.New("not found")
	// ErrInternal marks storage or other server-side failures (500)
	ErrInternal = errors.New("internal error")
)

// Finer authentication failures. All of them wrap ErrUnauthenticated.
var (
	ErrMissingCredentials = fmt.Errorf("%w: missing credentials", ErrUnauthenticated)
	ErrSessionExpired     = fmt.Errorf("%w: session expired", ErrUnauthenticated)
	ErrSessionNotFound    = fmt.Errorf("%w: session not found", ErrUnauthenticated)
	ErrInvalidAPIKey      = fmt.Errorf("%w: invalid api key", ErrUnauthenticated)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
	ErrInactiveUser       = fmt.Errorf("%w: user is inactive", ErrUnauthenticated)
)

// ErrNoCredentials is returned by a Strategy when its header is absent.
// It tells the Resolver to try the next strategy and never reaches callers.
var ErrNoCredentials = errors.New("no credentials for strategy")

// ValidationError reports malformed input (400)
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AsValidationError unwraps err to a *ValidationError if it is one
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
