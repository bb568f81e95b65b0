package steps

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/accounts"
	"github.com/copyleftdev/portalwatch/internal/browser"
	"github.com/copyleftdev/portalwatch/internal/config"
	"github.com/copyleftdev/portalwatch/internal/outcome"
	"github.com/copyleftdev/portalwatch/internal/runlog"
)

// CodeSource is an optional second observer of the redirect, typically the
// local callback listener. It reports the full redirect URL once seen.
type CodeSource interface {
	CapturedURL() (string, bool)
}

// OAuthCapture opens the authorization URL, clicks through an optional
// consent screen, and waits for the browser to land on the redirect URI.
// The identity-provider side of the flow completes asynchronously from this
// process's perspective, so the wait is a bounded location poll.
type OAuthCapture struct {
	cfg     *config.OAuthConfig
	consent []string
	source  CodeSource
	log     *zap.Logger
	rlog    *runlog.Log
	sleep   func(time.Duration)
}

func NewOAuthCapture(cfg *config.OAuthConfig, consentSelectors []string, source CodeSource, log *zap.Logger, rlog *runlog.Log) *OAuthCapture {
	return &OAuthCapture{
		cfg:     cfg,
		consent: consentSelectors,
		source:  source,
		log:     log,
		rlog:    rlog,
		sleep:   time.Sleep,
	}
}

func (o *OAuthCapture) Name() string { return "oauth-capture" }

func (o *OAuthCapture) Run(page Page, account accounts.Credential) (string, error) {
	if err := page.Navigate(o.cfg.AuthorizeURL); err != nil {
		return "", redirectErr(err, o.cfg.RedirectWait)
	}

	// Consent only appears on first authorization; absence is fine.
	if sel, err := page.WaitAny(o.consent, o.cfg.ConsentWait); err == nil {
		if err := page.Click(sel); err == nil {
			o.rlog.Appendf("  - accepted consent screen")
		}
	} else if !errors.Is(err, browser.ErrWaitTimeout) {
		return "", err
	}

	deadline := time.Now().Add(o.cfg.RedirectWait)
	for {
		if o.source != nil {
			if captured, ok := o.source.CapturedURL(); ok {
				return o.classify(captured)
			}
		}

		loc, err := page.Location()
		if err != nil {
			return "", redirectErr(err, o.cfg.RedirectWait)
		}
		if strings.HasPrefix(loc, o.cfg.RedirectPrefix) {
			return o.classify(loc)
		}

		if time.Now().After(deadline) {
			return "", &outcome.StepTimeout{Step: outcome.StepRedirect, Wait: o.cfg.RedirectWait}
		}
		o.sleep(o.cfg.PollInterval)
	}
}

func (o *OAuthCapture) classify(raw string) (string, error) {
	switch kind, value := Classify(raw); kind {
	case Authorized:
		o.rlog.Appendf("  - captured authorization redirect")
		return raw, nil
	case Denied:
		return "", &outcome.AuthorizationDenied{Code: value, URL: raw}
	default:
		// The location reached the redirect prefix but carries neither a
		// code nor an error; keep the raw URL for inspection.
		o.rlog.Appendf("  - warning: redirect matched prefix but has no code or error parameter")
		return raw, nil
	}
}

// CaptureKind classifies a redirect URL by its query parameters.
type CaptureKind int

const (
	Unknown CaptureKind = iota
	Authorized
	Denied
)

// Classify returns the kind of a captured redirect URL and the relevant
// parameter value: the authorization code, or the error code.
func Classify(raw string) (CaptureKind, string) {
	u, err := url.Parse(raw)
	if err != nil {
		return Unknown, ""
	}
	q := u.Query()
	if code := q.Get("code"); code != "" {
		return Authorized, code
	}
	if errCode := q.Get("error"); errCode != "" {
		return Denied, errCode
	}
	return Unknown, ""
}

func redirectErr(err error, wait time.Duration) error {
	if errors.Is(err, browser.ErrWaitTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &outcome.StepTimeout{Step: outcome.StepRedirect, Wait: wait}
	}
	return err
}
