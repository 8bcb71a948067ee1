package tempstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateTempRegistersForCleanup(t *testing.T) {
	s := New()
	dir := t.TempDir()

	path, err := s.CreateTemp(dir, "upload-*.wav")
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Cleanup())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestUnlinkIsIdempotent(t *testing.T) {
	s := New()
	dir := t.TempDir()
	path := filepath.Join(dir, "slice-0.wav")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	s.Register(path)

	require.NoError(t, s.Unlink(path))
	require.NoError(t, s.Unlink(path))
	require.NoError(t, s.Cleanup())
}

func TestCleanupToleratesMissingFiles(t *testing.T) {
	s := New()
	s.Register("/nonexistent/path/does-not-exist.wav")
	require.NoError(t, s.Cleanup())
}
