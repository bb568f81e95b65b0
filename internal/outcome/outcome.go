package outcome

import (
	"errors"
	"fmt"
	"time"
)

// Step names the bounded wait that produced a failure. Screenshot files and
// log lines use these values, so keep them short and filesystem-safe.
type Step string

const (
	StepEmail      Step = "email"
	StepPassword   Step = "password"
	StepKMSI       Step = "kmsi"
	StepChallenge  Step = "challenge"
	StepNavigation Step = "navigation"
	StepRedirect   Step = "redirect"
)

// ConfigurationError is fatal to the whole run: nothing was attempted.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// SessionInitError means the browser or its driver could not be started.
// Fatal to the current account only.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("session init failed: %v", e.Err)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// StepTimeout records an expired bounded wait at a named step. Not retried.
type StepTimeout struct {
	Step Step
	Wait time.Duration
}

func (e *StepTimeout) Error() string {
	return fmt.Sprintf("timed out after %s at step %q", e.Wait, e.Step)
}

// CredentialRejected means the password step did not advance. Distinct from
// a timeout so reports can tell a bad secret from a slow page.
type CredentialRejected struct {
	Identifier string
}

func (e *CredentialRejected) Error() string {
	return fmt.Sprintf("credentials rejected for %s", e.Identifier)
}

// UnsupportedChallenge is an interactive verification prompt this flow
// cannot satisfy (MFA without a configured TOTP secret, device approval).
type UnsupportedChallenge struct {
	Details string
}

func (e *UnsupportedChallenge) Error() string {
	return fmt.Sprintf("unsupported verification challenge: %s", e.Details)
}

// NotFound is a terminal but non-fatal extraction outcome: login worked, the
// target record simply is not there.
type NotFound struct {
	Target string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("subscription %q not found", e.Target)
}

// AuthorizationDenied is the OAuth error branch: the redirect arrived but
// carried an error parameter instead of a code.
type AuthorizationDenied struct {
	Code string
	URL  string
}

func (e *AuthorizationDenied) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Code)
}

// UploadFailure records a nonzero exit from the external uploader. Never
// escalated past the account boundary.
type UploadFailure struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *UploadFailure) Error() string {
	return fmt.Sprintf("upload failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *UploadFailure) Unwrap() error { return e.Err }

// FailedStep maps an error to the step name used for screenshot naming.
// Unclassified errors report as "unexpected".
func FailedStep(err error) Step {
	var st *StepTimeout
	if errors.As(err, &st) {
		return st.Step
	}
	var cr *CredentialRejected
	if errors.As(err, &cr) {
		return StepPassword
	}
	var uc *UnsupportedChallenge
	if errors.As(err, &uc) {
		return StepChallenge
	}
	var ad *AuthorizationDenied
	if errors.As(err, &ad) {
		return StepRedirect
	}
	return Step("unexpected")
}

// IsFatalToAccountOnly reports whether the run should continue with the next
// account. Only configuration errors abort the run.
func IsFatalToAccountOnly(err error) bool {
	var ce *ConfigurationError
	return !errors.As(err, &ce)
}
