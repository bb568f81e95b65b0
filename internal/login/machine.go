// Package login drives a browser session through the identity provider's
// sign-in flow: email entry, password entry, an optional verification-code
// challenge, and the optional "stay signed in" interstitial. Every wait is
// bounded and every expired bound becomes a named failure; the remote UI's
// timing and intermediate prompts are not under our control, so a timeout
// is an expected outcome, not an exception.
package login

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/accounts"
	"github.com/copyleftdev/portalwatch/internal/auth"
	"github.com/copyleftdev/portalwatch/internal/browser"
	"github.com/copyleftdev/portalwatch/internal/config"
	"github.com/copyleftdev/portalwatch/internal/outcome"
	"github.com/copyleftdev/portalwatch/internal/runlog"
)

// Page is what the machine needs from a browser session. The concrete
// implementation is browser.Session; tests use a scripted fake.
type Page interface {
	Navigate(url string) error
	WaitAny(selectors []string, timeout time.Duration) (string, error)
	Type(selector, text string) error
	Click(selector string) error
	IsPresent(selector string) (bool, error)
	Location() (string, error)
	BodyText() (string, error)
}

type Machine struct {
	cfg   *config.PortalConfig
	wait  time.Duration
	totp  map[string]string
	log   *zap.Logger
	rlog  *runlog.Log
	sleep func(time.Duration)
}

func NewMachine(cfg *config.PortalConfig, wait time.Duration, totpSecrets map[string]string, log *zap.Logger, rlog *runlog.Log) *Machine {
	return &Machine{
		cfg:   cfg,
		wait:  wait,
		totp:  totpSecrets,
		log:   log,
		rlog:  rlog,
		sleep: time.Sleep,
	}
}

// SignIn runs the flow to the post-login landing state. It returns nil when
// the downstream step may proceed, or one of the outcome failure types.
// There are no retries: an account that fails here is reported and skipped.
func (m *Machine) SignIn(page Page, cred accounts.Credential) error {
	sel := m.cfg.Selectors

	if err := page.Navigate(m.cfg.LoginURL); err != nil {
		return stepErr(err, outcome.StepEmail, m.wait)
	}

	// START -> EMAIL_ENTERED
	emailSel, err := page.WaitAny(sel.Email, m.wait)
	if err != nil {
		return stepErr(err, outcome.StepEmail, m.wait)
	}
	if err := page.Type(emailSel, cred.Identifier); err != nil {
		return stepErr(err, outcome.StepEmail, m.wait)
	}
	nextSel, err := page.WaitAny(sel.Next, m.wait)
	if err != nil {
		return stepErr(err, outcome.StepEmail, m.wait)
	}
	if err := page.Click(nextSel); err != nil {
		return stepErr(err, outcome.StepEmail, m.wait)
	}
	m.rlog.Appendf("  - entered email, clicked next")
	m.settle()

	// EMAIL_ENTERED -> PASSWORD_ENTERED
	passSel, err := page.WaitAny(sel.Password, m.wait)
	if err != nil {
		return stepErr(err, outcome.StepPassword, m.wait)
	}
	if err := page.Type(passSel, cred.Secret); err != nil {
		return stepErr(err, outcome.StepPassword, m.wait)
	}
	signSel, err := page.WaitAny(sel.SignIn, m.wait)
	if err != nil {
		return stepErr(err, outcome.StepPassword, m.wait)
	}
	if err := page.Click(signSel); err != nil {
		return stepErr(err, outcome.StepPassword, m.wait)
	}
	m.rlog.Appendf("  - entered password, clicked sign in")
	m.settle()

	// A password field still on screen means the provider bounced us back:
	// bad secret, not a slow page.
	if present, err := page.IsPresent(passSel); err == nil && present {
		return &outcome.CredentialRejected{Identifier: cred.Identifier}
	}

	if detected, details := m.detectChallenge(page); detected {
		if err := m.answerChallenge(page, cred, details); err != nil {
			return err
		}
	}

	// PASSWORD_ENTERED -> KMSI_RESOLVED. Absence of the prompt is success:
	// tenants configure it away, and some flows skip it entirely.
	kmsiSel, err := page.WaitAny(sel.KMSINo, m.cfg.KMSIWait)
	switch {
	case err == nil:
		if err := page.Click(kmsiSel); err != nil {
			return stepErr(err, outcome.StepKMSI, m.cfg.KMSIWait)
		}
		m.rlog.Appendf("  - declined 'stay signed in'")
	case errors.Is(err, browser.ErrWaitTimeout):
		m.rlog.Appendf("  - no 'stay signed in' prompt, continuing")
	default:
		return stepErr(err, outcome.StepKMSI, m.cfg.KMSIWait)
	}

	m.confirmLanding(page)
	return nil
}

// confirmLanding double-checks that the current location looks post-login.
// A mismatch is recorded as a low-confidence warning only; the downstream
// step fails explicitly if sign-in truly did not succeed.
func (m *Machine) confirmLanding(page Page) {
	loc, err := page.Location()
	if err != nil {
		m.log.Debug("could not read location after sign-in", zap.Error(err))
		return
	}
	for _, hint := range m.cfg.PostLoginURLHints {
		if strings.Contains(loc, hint) {
			return
		}
	}
	m.rlog.Appendf("  - warning: location %q does not look post-login, continuing anyway", loc)
}

// detectChallenge probes for a verification prompt, first by selector, then
// by page text.
func (m *Machine) detectChallenge(page Page) (bool, string) {
	for _, sel := range m.cfg.Selectors.ChallengeInput {
		present, err := page.IsPresent(sel)
		if err != nil {
			m.log.Debug("challenge selector probe failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if present {
			return true, "input " + sel
		}
	}

	text, err := page.BodyText()
	if err != nil {
		m.log.Debug("could not read page text for challenge check", zap.Error(err))
		return false, ""
	}
	lower := strings.ToLower(text)
	for _, pattern := range m.cfg.Selectors.ChallengeTexts {
		if strings.Contains(lower, pattern) {
			return true, "text " + pattern
		}
	}
	return false, ""
}

// answerChallenge satisfies a verification-code prompt when a TOTP secret is
// configured for the account. Anything else is an interactive step this
// flow cannot perform.
func (m *Machine) answerChallenge(page Page, cred accounts.Credential, details string) error {
	secret := m.totp[cred.Identifier]
	if secret == "" {
		return &outcome.UnsupportedChallenge{Details: details}
	}

	code, err := auth.Code(secret)
	if err != nil {
		return &outcome.UnsupportedChallenge{Details: "totp generation failed: " + err.Error()}
	}

	inputSel, err := page.WaitAny(m.cfg.Selectors.TOTPInput, m.wait)
	if err != nil {
		return stepErr(err, outcome.StepChallenge, m.wait)
	}
	if err := page.Type(inputSel, code); err != nil {
		return stepErr(err, outcome.StepChallenge, m.wait)
	}
	submitSel, err := page.WaitAny(m.cfg.Selectors.TOTPSubmit, m.wait)
	if err != nil {
		return stepErr(err, outcome.StepChallenge, m.wait)
	}
	if err := page.Click(submitSel); err != nil {
		return stepErr(err, outcome.StepChallenge, m.wait)
	}
	m.rlog.Appendf("  - answered verification-code prompt")
	m.settle()
	return nil
}

// settle pauses a randomized interval between steps to mimic human pacing;
// identity providers throttle suspiciously fast form submissions.
func (m *Machine) settle() {
	m.sleep(jitter(m.cfg.SettleMin, m.cfg.SettleMax))
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func stepErr(err error, step outcome.Step, wait time.Duration) error {
	if errors.Is(err, browser.ErrWaitTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &outcome.StepTimeout{Step: step, Wait: wait}
	}
	return err
}
