package steps

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/accounts"
	"github.com/copyleftdev/portalwatch/internal/browser"
	"github.com/copyleftdev/portalwatch/internal/config"
	"github.com/copyleftdev/portalwatch/internal/dom"
	"github.com/copyleftdev/portalwatch/internal/outcome"
	"github.com/copyleftdev/portalwatch/internal/runlog"
)

// ExpiryCheck navigates to the subscriptions view and reads the expiry
// string next to the target product name.
type ExpiryCheck struct {
	cfg  *config.ExtractConfig
	log  *zap.Logger
	rlog *runlog.Log
}

func NewExpiryCheck(cfg *config.ExtractConfig, log *zap.Logger, rlog *runlog.Log) *ExpiryCheck {
	return &ExpiryCheck{cfg: cfg, log: log, rlog: rlog}
}

func (e *ExpiryCheck) Name() string { return "expiry-check" }

func (e *ExpiryCheck) Run(page Page, account accounts.Credential) (string, error) {
	if err := page.Navigate(e.cfg.SubscriptionsURL); err != nil {
		return "", navErr(err, e.cfg.LoadTimeout)
	}

	// Container presence is the load signal; the row list renders into it.
	containerSel, err := page.WaitAny([]string{e.cfg.Container}, e.cfg.LoadTimeout)
	if err != nil {
		return "", navErr(err, e.cfg.LoadTimeout)
	}

	markup, err := page.OuterHTML(containerSel)
	if err != nil {
		return "", navErr(err, e.cfg.LoadTimeout)
	}

	row, found, err := dom.FindSubscription(markup, e.cfg.Target, dom.Locators{
		Rows:          e.cfg.Rows,
		Titles:        e.cfg.Titles,
		ExpiryMarkers: e.cfg.ExpiryMarkers,
		ExpiryFields:  e.cfg.ExpiryFields,
		StripPrefixes: e.cfg.StripPrefixes,
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", &outcome.NotFound{Target: e.cfg.Target}
	}

	e.rlog.Appendf("  - %s: %s", row.Title, row.Expiry)
	return row.Expiry, nil
}

func navErr(err error, wait time.Duration) error {
	if errors.Is(err, browser.ErrWaitTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &outcome.StepTimeout{Step: outcome.StepNavigation, Wait: wait}
	}
	return err
}
