package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/copyleftdev/portalwatch/internal/accounts"
	"github.com/copyleftdev/portalwatch/internal/browser"
	"github.com/copyleftdev/portalwatch/internal/callback"
	"github.com/copyleftdev/portalwatch/internal/config"
	"github.com/copyleftdev/portalwatch/internal/login"
	"github.com/copyleftdev/portalwatch/internal/notify"
	"github.com/copyleftdev/portalwatch/internal/runlog"
	"github.com/copyleftdev/portalwatch/internal/runner"
	"github.com/copyleftdev/portalwatch/internal/sink"
	"github.com/copyleftdev/portalwatch/internal/steps"
)

type variant int

const (
	variantExpiry variant = iota
	variantOAuth
)

var (
	cfgFile    string
	withUpload bool
)

func main() {
	// Optional; real deployments inject the account list via the runner's
	// secret store.
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "portalwatch",
		Short: "Automated Microsoft 365 admin portal login checks",
		Long: `portalwatch logs into the Microsoft 365 admin portal with each configured
account, then either reads the subscription expiry string or captures the
OAuth authorization redirect. Accounts are processed one at a time and a
report of the whole run is dispatched at the end.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., $HOME/.portalwatch, /etc/portalwatch)")

	expiryCmd := &cobra.Command{
		Use:   "expiry",
		Short: "Log in and read the target subscription's expiry string",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), variantExpiry)
		},
	}

	oauthCmd := &cobra.Command{
		Use:   "oauth",
		Short: "Log in and capture the OAuth authorization redirect",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), variantOAuth)
		},
	}
	oauthCmd.Flags().BoolVar(&withUpload, "upload", false, "hand the captured artifact to the external uploader")

	rootCmd.AddCommand(expiryCmd, oauthCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, v variant) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rlog := runlog.New()
	notifier := notify.New(cfg.Notify, logger)

	parsed, err := accounts.ParseList(os.Getenv(cfg.Accounts.EnvVar))
	if err != nil {
		// Configuration failure aborts before any account is attempted,
		// but is still surfaced through the notification path.
		rlog.Appendf("!! %v (environment variable %s)", err, cfg.Accounts.EnvVar)
		for _, d := range parsed.Discarded {
			rlog.Appendf("!! %s", d)
		}
		notifier.Send(cfg.Notify.Title, rlog.String())
		return err
	}

	machine := login.NewMachine(&cfg.Portal, cfg.Browser.WaitTimeout, cfg.Accounts.TOTPSecrets, logger, rlog)
	driver := runner.NewChromeDriver(browser.NewManager(&cfg.Browser, logger))
	artifacts := sink.New(cfg.Output.Dir, logger)

	var step steps.Step
	var uploader *sink.Uploader
	switch v {
	case variantExpiry:
		step = steps.NewExpiryCheck(&cfg.Extract, logger, rlog)
	case variantOAuth:
		var source steps.CodeSource
		if cfg.Callback.Listen != "" {
			srv := callback.New(cfg.Callback, cfg.OAuth.RedirectPrefix, logger)
			srv.Start()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			source = srv
		}
		step = steps.NewOAuthCapture(&cfg.OAuth, cfg.Portal.Selectors.Consent, source, logger, rlog)
		if withUpload {
			uploader = sink.NewUploader(cfg.Uploader, logger)
		}
	}

	r := runner.New(runner.Options{
		Config:   cfg,
		Driver:   driver,
		Auth:     machine,
		Step:     step,
		Sink:     artifacts,
		Uploader: uploader,
		Notifier: notifier,
		Log:      logger,
		RunLog:   rlog,
	})

	report := r.Run(ctx, parsed)
	logger.Info("run finished",
		zap.String("runId", report.ID.String()),
		zap.Int("accounts", report.Accounts),
		zap.Int("failures", report.Failures))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
