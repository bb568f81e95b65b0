// Package notify dispatches the end-of-run report. Dispatch must never
// fail the run: with no webhook configured, or when the webhook misbehaves,
// the body goes to standard output instead.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/config"
)

type Notifier struct {
	webhookURL string
	client     *http.Client
	log        *zap.Logger
	out        io.Writer
}

func New(cfg config.NotifyConfig, log *zap.Logger) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: timeout},
		log:        log,
		out:        os.Stdout,
	}
}

// Send delivers the report. No error return: the report is diagnostics, and
// the stdout fallback always succeeds.
func (n *Notifier) Send(title, body string) {
	if n.webhookURL == "" {
		n.fallback(title, body)
		return
	}

	payload, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		n.log.Warn("could not encode notification", zap.Error(err))
		n.fallback(title, body)
		return
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		n.log.Warn("notification dispatch failed", zap.Error(err))
		n.fallback(title, body)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.log.Warn("notification rejected", zap.String("status", resp.Status))
		n.fallback(title, body)
		return
	}
	n.log.Info("notification sent", zap.String("status", resp.Status))
}

func (n *Notifier) fallback(title, body string) {
	fmt.Fprintf(n.out, "--- %s ---\n%s\n--- end ---\n", title, body)
}
