package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/dom"
)

// ErrWaitTimeout marks an expired bounded wait. Callers translate it into a
// named step failure; inside this package it is just "the element never
// showed up in time".
var ErrWaitTimeout = errors.New("bounded wait expired")

const pollInterval = 500 * time.Millisecond

// Session is one live browser instance plus the maximum wait applied to
// every blocking operation in it. It is owned by exactly one account's
// processing and must be closed on every exit path; Close is idempotent.
type Session struct {
	ctx     context.Context
	wait    time.Duration
	log     *zap.Logger
	release func()
	once    sync.Once
}

func (s *Session) Close() {
	s.once.Do(s.release)
}

func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (s *Session) Navigate(url string) error {
	return s.run(s.wait, dom.NavigateAction(url))
}

// WaitAny polls the selector candidates in order until one is present and
// visible or the bound expires. The first hit short-circuits; the matched
// selector is returned so follow-up actions target the variant that
// actually rendered.
func (s *Session) WaitAny(selectors []string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		for _, sel := range selectors {
			present, err := s.IsPresent(sel)
			if err != nil {
				return "", err
			}
			if present {
				if err := s.run(pollInterval*4, dom.WaitVisibleAction(sel)); err == nil {
					return sel, nil
				}
			}
		}
		if time.Now().After(deadline) {
			return "", ErrWaitTimeout
		}
		select {
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (s *Session) Type(selector, text string) error {
	return s.run(s.wait, dom.TypeAction(selector, text))
}

func (s *Session) Click(selector string) error {
	return s.run(s.wait, dom.ClickAction(selector))
}

func (s *Session) IsPresent(selector string) (bool, error) {
	var present bool
	err := s.run(s.wait, dom.IsElementPresentAction(selector, &present))
	return present, err
}

func (s *Session) Location() (string, error) {
	var url string
	err := s.run(s.wait, dom.GetLocationAction(&url))
	return url, err
}

func (s *Session) BodyText() (string, error) {
	var text string
	err := s.run(s.wait, dom.GetTextContentAction(&text))
	return text, err
}

func (s *Session) OuterHTML(selector string) (string, error) {
	var html string
	err := s.run(s.wait, dom.GetOuterHTMLAction(selector, &html))
	return html, err
}

// Screenshot is best-effort diagnostics; callers treat an error as "no
// picture", never as a step failure.
func (s *Session) Screenshot() ([]byte, error) {
	var buf []byte
	err := s.run(s.wait, dom.ScreenshotAction(90, &buf))
	return buf, err
}
