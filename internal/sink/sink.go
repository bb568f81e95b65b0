// Package sink owns everything that leaves the process: the per-account
// artifact file, the external uploader hand-off, and best-effort failure
// screenshots.
package sink

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/outcome"
)

type Sink struct {
	dir string
	log *zap.Logger
}

func New(dir string, log *zap.Logger) *Sink {
	return &Sink{dir: dir, log: log}
}

// Persist writes the artifact to the account's file and returns its path.
// The file is a hand-off buffer for the uploader, not durable storage.
func (s *Sink) Persist(artifact, accountID string) (string, error) {
	path := filepath.Join(s.dir, ArtifactFileName(accountID))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(artifact); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	s.log.Info("artifact written", zap.String("path", path))
	return path, nil
}

func (s *Sink) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	s.log.Info("artifact removed after upload hand-off", zap.String("path", path))
	return nil
}

// SaveScreenshot writes a diagnostic capture named from the failed step and
// account. Best effort: any problem is logged and swallowed, and the
// returned path is empty when nothing was written.
func (s *Sink) SaveScreenshot(step outcome.Step, accountID string, png []byte) string {
	if len(png) == 0 {
		return ""
	}
	path := filepath.Join(s.dir, fmt.Sprintf("fail-%s-%s.png", step, SafeName(accountID)))
	if err := os.WriteFile(path, png, 0o600); err != nil {
		s.log.Warn("could not save failure screenshot", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

// ArtifactFileName derives the per-account artifact filename. Deterministic
// and collision-free across distinct identifiers.
func ArtifactFileName(accountID string) string {
	return fmt.Sprintf("response_%s.txt", SafeName(accountID))
}

// SafeName maps an account identifier to a filesystem-safe token. A short
// hash of the original rides along so two identifiers that sanitize to the
// same text still get distinct files.
func SafeName(accountID string) string {
	var b strings.Builder
	for _, r := range accountID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return fmt.Sprintf("%s-%08x", b.String(), h.Sum32())
}
