package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/copyleftdev/portalwatch/internal/config"
	"github.com/copyleftdev/portalwatch/internal/outcome"
)

func TestPersistAndRemove(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zap.NewNop())

	path, err := s.Persist("2026-09-30", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ArtifactFileName("a@x.com")), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-30", string(data))

	require.NoError(t, s.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPersistOverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zap.NewNop())

	_, err := s.Persist("stale artifact from the last run", "a@x.com")
	require.NoError(t, err)
	path, err := s.Persist("fresh", "a@x.com")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestSaveScreenshot(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zap.NewNop())

	path := s.SaveScreenshot(outcome.StepPassword, "a@x.com", []byte{0x89, 0x50, 0x4e, 0x47})
	require.NotEmpty(t, path)
	assert.Contains(t, filepath.Base(path), "fail-password")

	assert.Empty(t, s.SaveScreenshot(outcome.StepEmail, "a@x.com", nil))
}

func TestSafeName(t *testing.T) {
	a := SafeName("user+tag@x.com")
	b := SafeName("user-tag@x.com")
	assert.NotEqual(t, a, b, "identifiers that sanitize alike must still differ")
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "@")

	// Deterministic across calls.
	assert.Equal(t, ArtifactFileName("a@x.com"), ArtifactFileName("a@x.com"))
}

func testUploader(bin string) *Uploader {
	return NewUploader(config.UploaderConfig{
		Bin:     bin,
		Remote:  "remote:artifacts",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestUpload_Success(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "response_x.txt")
	require.NoError(t, os.WriteFile(path, []byte("code"), 0o600))

	err := testUploader("true").Upload(context.Background(), path)
	assert.NoError(t, err)
}

func TestUpload_NonzeroExit(t *testing.T) {
	err := testUploader("false").Upload(context.Background(), "/nonexistent")

	var uf *outcome.UploadFailure
	require.ErrorAs(t, err, &uf)
	assert.Equal(t, 1, uf.ExitCode)
}

func TestUpload_MissingBinary(t *testing.T) {
	err := testUploader("/no/such/uploader").Upload(context.Background(), "/nonexistent")

	var uf *outcome.UploadFailure
	require.ErrorAs(t, err, &uf)
	assert.Equal(t, -1, uf.ExitCode)
}
