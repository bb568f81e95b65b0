// Package steps holds the pluggable post-login work: one fragile sign-in
// flow feeds several variants, so each variant is a Step rather than its
// own copy of the whole script.
package steps

import (
	"time"

	"github.com/copyleftdev/portalwatch/internal/accounts"
)

// Page is the slice of browser session behavior the post-login steps use.
type Page interface {
	Navigate(url string) error
	WaitAny(selectors []string, timeout time.Duration) (string, error)
	Click(selector string) error
	Location() (string, error)
	OuterHTML(selector string) (string, error)
}

// Step runs after a successful sign-in and returns the captured artifact,
// which may be empty when the step has nothing to hand off. Failures use
// the outcome taxonomy; NotFound and AuthorizationDenied are terminal for
// the account but not errors of the run.
type Step interface {
	Name() string
	Run(page Page, account accounts.Credential) (string, error)
}
