package sink

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/config"
	"github.com/copyleftdev/portalwatch/internal/outcome"
)

// Uploader hands the artifact file to an external process. Exit status zero
// is success; anything else comes back as an UploadFailure carrying the
// process's error output, and is never escalated past the account boundary.
type Uploader struct {
	cfg config.UploaderConfig
	log *zap.Logger
}

func NewUploader(cfg config.UploaderConfig, log *zap.Logger) *Uploader {
	return &Uploader{cfg: cfg, log: log}
}

func (u *Uploader) Upload(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()

	var args []string
	if u.cfg.ConfigFile != "" {
		args = append(args, "--config", u.cfg.ConfigFile)
	}
	args = append(args, "copy", path, u.cfg.Remote)

	cmd := exec.CommandContext(ctx, u.cfg.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	u.log.Info("invoking uploader", zap.String("bin", u.cfg.Bin), zap.String("path", path))
	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &outcome.UploadFailure{
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}
}
