package auth

import "errors"

// Reason is the outward-facing failure vocabulary of the auth service. The
// HTTP layer maps these to status codes; nothing else leaks out.
type Reason string

const (
	ReasonUserExists    Reason = "userExists"
	ReasonUserNotFound  Reason = "userNotFound"
	ReasonLoginFail     Reason = "loginFail"
	ReasonResetPassword Reason = "resetPasswordFail"
	ReasonNotAuthorized Reason = "notAuthorized"
)

// Failure is a domain error carrying one of the fixed reasons.
type Failure struct {
	Reason Reason
}

func (f *Failure) Error() string {
	return string(f.Reason)
}

func fail(reason Reason) *Failure {
	return &Failure{Reason: reason}
}

// ReasonOf extracts the failure reason from an error chain.
func ReasonOf(err error) (Reason, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Reason, true
	}
	return "", false
}
