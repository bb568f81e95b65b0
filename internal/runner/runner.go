// Package runner iterates accounts sequentially: open a session, sign in,
// run the variant step, close the session, pause, next account. Any failure
// is converted to run-log lines at this boundary; one account's problem
// never aborts the rest of the run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/accounts"
	"github.com/copyleftdev/portalwatch/internal/browser"
	"github.com/copyleftdev/portalwatch/internal/config"
	"github.com/copyleftdev/portalwatch/internal/login"
	"github.com/copyleftdev/portalwatch/internal/notify"
	"github.com/copyleftdev/portalwatch/internal/outcome"
	"github.com/copyleftdev/portalwatch/internal/runlog"
	"github.com/copyleftdev/portalwatch/internal/sink"
	"github.com/copyleftdev/portalwatch/internal/steps"
)

// Session is one account's browser handle as the runner sees it.
// browser.Session is the real implementation; tests script a fake.
type Session interface {
	login.Page
	OuterHTML(selector string) (string, error)
	Screenshot() ([]byte, error)
	Close()
}

// Driver opens sessions. Exactly one session is live at a time.
type Driver interface {
	Open(ctx context.Context) (Session, error)
}

// Authenticator drives a session to the post-login landing state.
type Authenticator interface {
	SignIn(page login.Page, cred accounts.Credential) error
}

// NewChromeDriver adapts the concrete browser manager to the Driver
// interface.
func NewChromeDriver(m *browser.Manager) Driver {
	return chromeDriver{m: m}
}

type chromeDriver struct{ m *browser.Manager }

func (d chromeDriver) Open(ctx context.Context) (Session, error) {
	s, err := d.m.Open(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type Options struct {
	Config   *config.Config
	Driver   Driver
	Auth     Authenticator
	Step     steps.Step
	Sink     *sink.Sink
	Uploader *sink.Uploader // nil disables the upload hand-off
	Notifier *notify.Notifier
	Log      *zap.Logger
	RunLog   *runlog.Log
}

type Runner struct {
	cfg      *config.Config
	driver   Driver
	auth     Authenticator
	step     steps.Step
	sink     *sink.Sink
	uploader *sink.Uploader
	notifier *notify.Notifier
	log      *zap.Logger
	rlog     *runlog.Log
	sleep    func(time.Duration)
}

type Report struct {
	ID       uuid.UUID
	Body     string
	Accounts int
	Failures int
}

func New(opts Options) *Runner {
	rlog := opts.RunLog
	if rlog == nil {
		rlog = runlog.New()
	}
	return &Runner{
		cfg:      opts.Config,
		driver:   opts.Driver,
		auth:     opts.Auth,
		step:     opts.Step,
		sink:     opts.Sink,
		uploader: opts.Uploader,
		notifier: opts.Notifier,
		log:      opts.Log,
		rlog:     rlog,
		sleep:    time.Sleep,
	}
}

// Run processes every credential and dispatches the joined run log once at
// the end.
func (r *Runner) Run(ctx context.Context, parsed accounts.Report) Report {
	id := uuid.New()
	r.log.Info("run starting", zap.String("runId", id.String()), zap.String("step", r.step.Name()))

	r.rlog.Appendf("detected %d account(s)", len(parsed.Credentials))
	for _, d := range parsed.Discarded {
		r.rlog.Appendf("!! %s", d)
	}

	failures := 0
	for i, cred := range parsed.Credentials {
		r.rlog.Appendf("checking account: %s", cred.Identifier)
		if err := r.processAccount(ctx, cred); err != nil {
			failures++
		}
		r.rlog.Appendf("finished account: %s", cred.Identifier)

		if i < len(parsed.Credentials)-1 {
			r.sleep(jitter(r.cfg.Portal.AccountDelayMin, r.cfg.Portal.AccountDelayMax))
		}
	}

	body := r.rlog.String()
	r.notifier.Send(r.cfg.Notify.Title, body)

	return Report{ID: id, Body: body, Accounts: len(parsed.Credentials), Failures: failures}
}

// processAccount runs one account end to end. The deferred recover is the
// unclassified-error boundary: whatever escapes the typed outcomes is
// recorded here and the run moves on.
func (r *Runner) processAccount(ctx context.Context, cred accounts.Credential) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("unexpected error: %v", rec)
			r.rlog.Appendf("!! %s: %v", cred.Identifier, err)
			r.log.Error("account processing panicked", zap.String("account", cred.Identifier), zap.Any("panic", rec))
		}
	}()

	sess, err := r.driver.Open(ctx)
	if err != nil {
		r.rlog.Appendf("!! %s: %v", cred.Identifier, err)
		return err
	}
	defer sess.Close()
	r.rlog.Appendf("  - browser session started")

	if err := r.auth.SignIn(sess, cred); err != nil {
		r.captureFailure(sess, err, cred.Identifier)
		r.rlog.Appendf("!! %s: %v", cred.Identifier, err)
		return err
	}

	artifact, err := r.step.Run(sess, cred)
	if err != nil {
		var nf *outcome.NotFound
		if errors.As(err, &nf) {
			// Terminal but not an error: login worked, the record is absent.
			r.rlog.Appendf("  - %v", err)
			return nil
		}
		r.captureFailure(sess, err, cred.Identifier)
		r.rlog.Appendf("!! %s: %v", cred.Identifier, err)
		return err
	}
	if artifact == "" {
		return nil
	}

	path, err := r.sink.Persist(artifact, cred.Identifier)
	if err != nil {
		r.rlog.Appendf("!! %s: %v", cred.Identifier, err)
		return err
	}
	r.rlog.Appendf("  - artifact saved to %s", path)

	if r.uploader != nil {
		if uerr := r.uploader.Upload(ctx, path); uerr != nil {
			r.rlog.Appendf("!! %s: %v", cred.Identifier, uerr)
		} else {
			r.rlog.Appendf("  - artifact uploaded")
		}
		// Removed after the attempt regardless of its outcome: the file
		// holds a live authorization code and must not outlive the run.
		if rerr := r.sink.Remove(path); rerr != nil {
			r.log.Warn("could not remove artifact after upload", zap.Error(rerr))
		}
	}
	return nil
}

func (r *Runner) captureFailure(sess Session, cause error, accountID string) {
	png, err := sess.Screenshot()
	if err != nil {
		r.log.Debug("failure screenshot unavailable", zap.Error(err))
		return
	}
	if path := r.sink.SaveScreenshot(outcome.FailedStep(cause), accountID, png); path != "" {
		r.rlog.Appendf("  - failure screenshot: %s", path)
	}
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
