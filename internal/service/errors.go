package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/careassist/webgate/internal/adapters/restapi"
)

// Message keys surfaced to the UI layer, which owns translation.
const (
	MsgInvalidCredentials = "auth.invalid_credentials"
	MsgRegistrationFailed = "auth.registration_failed"
	MsgServiceUnreachable = "auth.service_unreachable"
)

// AuthError is a user-facing authentication failure. MessageKey identifies
// the translated message; Err carries the cause for logs.
type AuthError struct {
	MessageKey string
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %v", e.MessageKey, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// newAuthError classifies an API failure: a 4xx means the endpoint rejected
// the credentials, anything else means it was unreachable or broken.
func newAuthError(err error, rejectedKey string) *AuthError {
	var apiErr *restapi.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < http.StatusInternalServerError {
		return &AuthError{MessageKey: rejectedKey, Err: err}
	}
	return &AuthError{MessageKey: MsgServiceUnreachable, Err: err}
}
