package session

import "fmt"

// AuthErrorKind classifies sign-in step failures.
type AuthErrorKind string

const (
	// AuthNetworkFailure means the transport or the API rejected the step
	// for a reason unrelated to the supplied input.
	AuthNetworkFailure AuthErrorKind = "network_failure"

	// AuthInvalidCode means the one-time code was wrong or expired.
	AuthInvalidCode AuthErrorKind = "invalid_code"

	// AuthInvalidPassword means the second-factor password was wrong.
	AuthInvalidPassword AuthErrorKind = "invalid_password"

	// AuthNoPendingRequest means a code was submitted without a matching
	// outstanding code request.
	AuthNoPendingRequest AuthErrorKind = "no_pending_request"
)

// AuthError represents a failed authentication step.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthNetworkFailure:
		return fmt.Sprintf("auth step failed: %v", e.Err)
	case AuthInvalidCode:
		return "invalid or expired login code"
	case AuthInvalidPassword:
		return "invalid two-factor password"
	case AuthNoPendingRequest:
		return "no pending code request"
	default:
		return fmt.Sprintf("auth error: %v", e.Err)
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
