package eir

import (
	"archive/tar"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// fakeCall records one subprocess invocation seen by the fake runner.
type fakeCall struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// fakeRunner satisfies Runner without spawning anything. Every call is
// recorded; exitCode decides the simulated outcome per command.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []fakeCall
	exitCode func(cmd *exec.Cmd) int
}

func (f *fakeRunner) Run(_ context.Context, cmd *exec.Cmd) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{Path: cmd.Path, Args: cmd.Args, Dir: cmd.Dir, Env: cmd.Env})
	code := 0
	if f.exitCode != nil {
		code = f.exitCode(cmd)
	}
	return &Result{ExitCode: code, Output: []byte("fake output")}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// newTestContext builds a BuildContext rooted in a temp dir with a fake
// runner and quiet output.
func newTestContext(t *testing.T) (*BuildContext, *fakeRunner) {
	t.Helper()
	root := t.TempDir()

	cfg := &Config{Values: map[string]string{"EIR_ROOT": root}}
	bc, err := newBuildContext(cfg)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(bc.ManifestDir, 0o755))

	fr := &fakeRunner{}
	bc.Runner = fr
	bc.Quiet = true
	return bc, fr
}

// writeTar writes a tar stream with a single top-level directory.
func writeTar(t *testing.T, tw *tar.Writer, topdir string, files map[string]string) {
	t.Helper()
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     topdir + "/",
		Typeflag: tar.TypeDir,
		Mode:     0o755,
	}))
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     topdir + "/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

// makeTarXZ creates a .tar.xz archive at path with one top-level directory.
func makeTarXZ(t *testing.T, path, topdir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	xw, err := xz.NewWriter(f)
	require.NoError(t, err)
	writeTar(t, tar.NewWriter(xw), topdir, files)
	require.NoError(t, xw.Close())
}

// makeTarGz creates a .tar.gz archive at path with one top-level directory.
func makeTarGz(t *testing.T, path, topdir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := pgzip.NewWriter(f)
	writeTar(t, tar.NewWriter(gw), topdir, files)
	require.NoError(t, gw.Close())
}
