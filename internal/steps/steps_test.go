package steps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/accounts"
	"github.com/copyleftdev/portalwatch/internal/browser"
	"github.com/copyleftdev/portalwatch/internal/config"
	"github.com/copyleftdev/portalwatch/internal/outcome"
	"github.com/copyleftdev/portalwatch/internal/runlog"
)

// stepPage scripts the slice of session behavior the steps use.
type stepPage struct {
	available map[string]bool
	outerHTML string
	location  string
	locations []string // consumed one per Location call when non-empty

	navigated []string
	clicked   []string
}

func newStepPage(available ...string) *stepPage {
	av := make(map[string]bool, len(available))
	for _, sel := range available {
		av[sel] = true
	}
	return &stepPage{available: av}
}

func (p *stepPage) Navigate(url string) error {
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *stepPage) WaitAny(selectors []string, timeout time.Duration) (string, error) {
	for _, sel := range selectors {
		if p.available[sel] {
			return sel, nil
		}
	}
	return "", browser.ErrWaitTimeout
}

func (p *stepPage) Click(selector string) error {
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *stepPage) Location() (string, error) {
	if len(p.locations) > 0 {
		loc := p.locations[0]
		if len(p.locations) > 1 {
			p.locations = p.locations[1:]
		}
		return loc, nil
	}
	return p.location, nil
}

func (p *stepPage) OuterHTML(selector string) (string, error) {
	return p.outerHTML, nil
}

func account() accounts.Credential {
	return accounts.Credential{Identifier: "a@x.com", Secret: "p1"}
}

func testExtractConfig() *config.ExtractConfig {
	return &config.ExtractConfig{
		SubscriptionsURL: "https://admin.example.com/#/subscriptions",
		Container:        "main",
		Target:           "Microsoft 365 E5",
		LoadTimeout:      time.Second,
		Rows:             []string{"ms-List-cell"},
		Titles:           []string{"product-title"},
		ExpiryMarkers:    []string{"Expires"},
		ExpiryFields:     []string{"expiration-date"},
		StripPrefixes:    []string{"Expires on", "Expires"},
	}
}

func TestExpiryCheck_Found(t *testing.T) {
	page := newStepPage("main")
	page.outerHTML = `<div class="ms-List-cell">
		<span class="product-title">Microsoft 365 E5 Developer</span>
		<span>Expires on 2026-09-30</span>
	</div>`
	step := NewExpiryCheck(testExtractConfig(), zap.NewNop(), runlog.New())

	artifact, err := step.Run(page, account())
	require.NoError(t, err)
	assert.Equal(t, "2026-09-30", artifact)
	assert.Equal(t, []string{"https://admin.example.com/#/subscriptions"}, page.navigated)
}

func TestExpiryCheck_NotFound(t *testing.T) {
	page := newStepPage("main")
	page.outerHTML = `<div class="ms-List-cell"><span class="product-title">Office 365 E3</span></div>`
	step := NewExpiryCheck(testExtractConfig(), zap.NewNop(), runlog.New())

	_, err := step.Run(page, account())

	var nf *outcome.NotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Microsoft 365 E5", nf.Target)
}

func TestExpiryCheck_ContainerTimeout(t *testing.T) {
	page := newStepPage() // container never renders
	step := NewExpiryCheck(testExtractConfig(), zap.NewNop(), runlog.New())

	_, err := step.Run(page, account())

	var st *outcome.StepTimeout
	require.ErrorAs(t, err, &st)
	assert.Equal(t, outcome.StepNavigation, st.Step)
}

func testOAuthConfig() *config.OAuthConfig {
	return &config.OAuthConfig{
		AuthorizeURL:   "https://login.example.com/authorize?client_id=x",
		RedirectPrefix: "http://localhost/onedrive-login",
		ConsentWait:    time.Millisecond,
		RedirectWait:   20 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}
}

func newCapture(source CodeSource) (*OAuthCapture, *runlog.Log) {
	rlog := runlog.New()
	c := NewOAuthCapture(testOAuthConfig(), []string{"#accept"}, source, zap.NewNop(), rlog)
	return c, rlog
}

func TestOAuthCapture_AuthorizedRedirect(t *testing.T) {
	page := newStepPage()
	page.locations = []string{
		"https://login.example.com/authorize?client_id=x", // still on the IdP
		"http://localhost/onedrive-login?code=abc123",
	}
	step, _ := newCapture(nil)

	artifact, err := step.Run(page, account())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/onedrive-login?code=abc123", artifact)
}

func TestOAuthCapture_DeniedRedirect(t *testing.T) {
	page := newStepPage()
	page.location = "http://localhost/onedrive-login?error=access_denied"
	step, _ := newCapture(nil)

	_, err := step.Run(page, account())

	var ad *outcome.AuthorizationDenied
	require.ErrorAs(t, err, &ad)
	assert.Equal(t, "access_denied", ad.Code)
}

func TestOAuthCapture_RedirectTimeout(t *testing.T) {
	page := newStepPage()
	page.location = "https://login.example.com/authorize?client_id=x" // never redirects
	step, _ := newCapture(nil)

	_, err := step.Run(page, account())

	var st *outcome.StepTimeout
	require.ErrorAs(t, err, &st)
	assert.Equal(t, outcome.StepRedirect, st.Step)
}

func TestOAuthCapture_ConsentClickedWhenPresent(t *testing.T) {
	page := newStepPage("#accept")
	page.location = "http://localhost/onedrive-login?code=abc123"
	step, rlog := newCapture(nil)

	_, err := step.Run(page, account())
	require.NoError(t, err)
	assert.Contains(t, page.clicked, "#accept")
	assert.Contains(t, rlog.String(), "accepted consent screen")
}

func TestOAuthCapture_FormatMismatchStillCaptured(t *testing.T) {
	page := newStepPage()
	page.location = "http://localhost/onedrive-login?state=only"
	step, rlog := newCapture(nil)

	artifact, err := step.Run(page, account())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/onedrive-login?state=only", artifact)
	assert.Contains(t, rlog.String(), "no code or error parameter")
}

type fakeSource struct{ url string }

func (f *fakeSource) CapturedURL() (string, bool) {
	if f.url == "" {
		return "", false
	}
	u := f.url
	f.url = ""
	return u, true
}

func TestOAuthCapture_CallbackSourceWins(t *testing.T) {
	page := newStepPage()
	page.location = "https://login.example.com/authorize?client_id=x"
	step, _ := newCapture(&fakeSource{url: "http://localhost/onedrive-login?code=fromlistener"})

	artifact, err := step.Run(page, account())
	require.NoError(t, err)
	assert.Contains(t, artifact, "code=fromlistener")
}

func TestClassify(t *testing.T) {
	kind, value := Classify("http://localhost/onedrive-login?code=abc123")
	assert.Equal(t, Authorized, kind)
	assert.Equal(t, "abc123", value)

	kind, value = Classify("http://localhost/onedrive-login?error=access_denied")
	assert.Equal(t, Denied, kind)
	assert.Equal(t, "access_denied", value)

	kind, _ = Classify("http://localhost/onedrive-login")
	assert.Equal(t, Unknown, kind)
}
