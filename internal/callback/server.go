// Package callback runs a small local listener on the OAuth redirect URI.
// The authorization redirect points at localhost; without a listener the
// browser shows a connection error (harmless, the location bar still holds
// the code), with one the redirect lands cleanly and this server records
// the full URL as a second capture source.
package callback

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/config"
)

type Server struct {
	httpServer     *http.Server
	redirectPrefix string
	log            *zap.Logger

	mu       sync.Mutex
	captured string
}

func New(cfg config.CallbackConfig, redirectPrefix string, log *zap.Logger) *Server {
	s := &Server{
		redirectPrefix: redirectPrefix,
		log:            log,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get(cfg.Path, s.handleRedirect)

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves in the background. A bind failure is logged, not fatal:
// the capturer still reads the browser location directly.
func (s *Server) Start() {
	go func() {
		s.log.Info("callback listener starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn("callback listener stopped", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// CapturedURL returns the most recent redirect, reconstructed against the
// configured prefix, and clears it so one account's code never bleeds into
// the next account's capture.
func (s *Server) CapturedURL() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.captured == "" {
		return "", false
	}
	url := s.captured
	s.captured = ""
	return url, true
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	url := s.redirectPrefix
	if q := r.URL.RawQuery; q != "" {
		url = fmt.Sprintf("%s?%s", s.redirectPrefix, q)
	}

	s.mu.Lock()
	s.captured = url
	s.mu.Unlock()

	s.log.Info("redirect captured by callback listener")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Sign-in complete. You may close this window."))
}
