package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceFile_ClaimAndRead(t *testing.T) {
	f := NewInstanceFile(filepath.Join(t.TempDir(), "state", "serve.json"))

	inst, err := f.Claim(":8080")
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), inst.PID)
	assert.Equal(t, "http://localhost:8080", inst.URL())

	got, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, ":8080", got.Addr)
	assert.Equal(t, os.Getpid(), got.PID)
}

func TestInstanceFile_ClaimRefusesLiveOwner(t *testing.T) {
	f := NewInstanceFile(filepath.Join(t.TempDir(), "serve.json"))
	_, err := f.Claim(":8080")
	require.NoError(t, err)

	_, err = f.Claim(":9090")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestInstanceFile_ClaimReplacesStaleRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	// A very high PID that almost certainly doesn't exist.
	require.NoError(t, os.WriteFile(path, []byte(`{"pid":999999,"addr":":1"}`), 0o644))

	f := NewInstanceFile(path)
	_, running := f.Running()
	assert.False(t, running)

	inst, err := f.Claim("127.0.0.1:8081")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8081", inst.URL())
}

func TestInstanceFile_Read_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json\n"), 0o644))

	_, err := NewInstanceFile(path).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid instance file content")
}

func TestInstanceFile_Release(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	f := NewInstanceFile(path)

	assert.NoError(t, f.Release(), "releasing a missing file is a no-op")

	_, err := f.Claim(":8080")
	require.NoError(t, err)
	require.NoError(t, f.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestInstanceFile_ReleaseKeepsForeignRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pid":999999,"addr":":1"}`), 0o644))

	require.NoError(t, NewInstanceFile(path).Release())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestInstanceFile_StopNotRunning(t *testing.T) {
	f := NewInstanceFile(filepath.Join(t.TempDir(), "serve.json"))
	_, err := f.Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
}
