package eir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBuildCommandUndefinedPhaseIsWarningSkip(t *testing.T) {
	bc, fr := newTestContext(t)
	m := &Manifest{
		Name:  "binutils",
		File:  "binutils-2.30.tar.xz",
		URI:   "https://example.invalid/binutils-2.30.tar.xz",
		Hash:  "aa",
		Build: map[string]string{"toolchain": "make"},
	}
	g, err := NewGraph([]*Manifest{m}, nil)
	require.NoError(t, err)

	// The package defines no bootstrap command: skip, don't fail.
	require.NoError(t, runBuildCommand(context.Background(), bc, g, PhaseBootstrap, "binutils"))
	assert.Equal(t, 0, fr.callCount())
	assert.False(t, bc.Stamps.Exists("binutils", PhaseBootstrap, StageBuild))
}

func TestRunBuildCommandUnknownPackage(t *testing.T) {
	bc, _ := newTestContext(t)
	g, err := NewGraph(toolchainManifests(), nil)
	require.NoError(t, err)

	err = runBuildCommand(context.Background(), bc, g, PhaseToolchain, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown package")
}

func TestRunBuildCommandDefinedPhaseRunsChain(t *testing.T) {
	bc, fr := newTestContext(t)
	m := &Manifest{
		Name:  "binutils",
		File:  "binutils-2.30.tar.xz",
		URI:   "https://example.invalid/binutils-2.30.tar.xz",
		Build: map[string]string{"toolchain": "make"},
	}
	stageManifest(t, bc, m)
	g, err := NewGraph([]*Manifest{m}, nil)
	require.NoError(t, err)

	require.NoError(t, runBuildCommand(context.Background(), bc, g, PhaseToolchain, "binutils"))
	assert.Equal(t, 1, fr.callCount())
	assert.True(t, bc.Stamps.Exists("binutils", PhaseToolchain, StageBuild))
}

func TestRunPatchCommandPhaseWithoutBuildEntry(t *testing.T) {
	bc, fr := newTestContext(t)
	m := &Manifest{
		Name:  "glibc",
		File:  "glibc-2.39.tar.xz",
		URI:   "https://example.invalid/glibc-2.39.tar.xz",
		Build: map[string]string{"toolchain": "make"},
	}
	stageManifest(t, bc, m)
	// Patches exist for a phase the manifest defines no build command for.
	writePatchFiles(t, patchDir(bc, PhaseBootstrap, m), "0001-timezone.patch")

	g, err := NewGraph([]*Manifest{m}, nil)
	require.NoError(t, err)

	require.NoError(t, runPatchCommand(context.Background(), bc, g, PhaseBootstrap, "glibc"))

	// The source was extracted and the patch applied from within it.
	_, statErr := os.Stat(bc.srcDir(m))
	require.NoError(t, statErr)
	require.Equal(t, 1, fr.callCount())
	call := fr.calls[0]
	assert.Equal(t, "patch", filepath.Base(call.Args[0]))
	assert.Equal(t, bc.srcDir(m), call.Dir)
	assert.True(t, bc.Stamps.Exists("glibc", PhaseBootstrap, StagePatch))
}

func TestRunPatchCommandUnknownPackage(t *testing.T) {
	bc, _ := newTestContext(t)
	g, err := NewGraph(toolchainManifests(), nil)
	require.NoError(t, err)

	err = runPatchCommand(context.Background(), bc, g, PhaseToolchain, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown package")
}

func TestExpandPackages(t *testing.T) {
	ms := toolchainManifests()
	assert.Equal(t, []string{"gcc"}, expandPackages(ms, "gcc"))
	assert.Equal(t, []string{"binutils", "gcc", "linux-headers"}, expandPackages(ms, "all"))
}
