package browser

import (
	"context"
	"os"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/copyleftdev/portalwatch/internal/config"
	"github.com/copyleftdev/portalwatch/internal/outcome"
)

// Manager opens browser sessions. A weighted semaphore caps how many are
// live at once; accounts are processed sequentially so the default capacity
// is one, which also keeps the append-only run log free of interleaving.
type Manager struct {
	cfg *config.BrowserConfig
	log *zap.Logger
	sem *semaphore.Weighted
}

func NewManager(cfg *config.BrowserConfig, log *zap.Logger) *Manager {
	max := cfg.MaxSessions
	if max < 1 {
		max = 1
	}
	return &Manager{
		cfg: cfg,
		log: log,
		sem: semaphore.NewWeighted(int64(max)),
	}
}

// Open starts a fresh browser instance and returns a Session bound to it.
// Every account gets its own instance: no cookies or storage survive from
// one account to the next. Failures come back as SessionInitError, never a
// panic; the caller decides whether the run continues.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, &outcome.SessionInitError{Err: err}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(m.cfg.WindowWidth, m.cfg.WindowHeight),
		chromedp.UserAgent(m.cfg.UserAgent),
		chromedp.IgnoreCertErrors,
	)
	if path := m.resolveExecPath(); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(m.log.Sugar().Debugf))

	sess := &Session{
		ctx:  browserCtx,
		wait: m.cfg.WaitTimeout,
		log:  m.log,
		release: func() {
			cancelBrowser()
			cancelAlloc()
			m.sem.Release(1)
		},
	}

	// First Run starts the browser process; clearing cookies doubles as a
	// liveness probe.
	startCtx, cancel := context.WithTimeout(browserCtx, m.cfg.WaitTimeout)
	defer cancel()
	err := chromedp.Run(startCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.ClearBrowserCookies().Do(ctx)
	}))
	if err != nil {
		sess.Close()
		return nil, &outcome.SessionInitError{Err: err}
	}

	return sess, nil
}

// resolveExecPath walks the configured candidate paths in priority order and
// reports which one will be used. An empty result defers to chromedp's own
// lookup.
func (m *Manager) resolveExecPath() string {
	for _, p := range m.cfg.ExecPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			m.log.Info("using browser executable", zap.String("path", p))
			return p
		}
	}
	if len(m.cfg.ExecPaths) > 0 {
		m.log.Warn("no configured browser executable found, falling back to auto-detect")
	}
	return ""
}
