package eir

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeArch(t *testing.T) {
	assert.Equal(t, "x86_64", normalizeArch("amd64"))
	assert.Equal(t, "aarch64", normalizeArch("arm64"))
	assert.Equal(t, "riscv64", normalizeArch("riscv64"))
}

func TestDefaultTarget(t *testing.T) {
	assert.Equal(t, "x86_64-eir-linux-gnu", defaultTarget("amd64"))
	assert.Equal(t, "x86_64-eir-linux-gnu", defaultTarget("x86_64"))
	assert.Equal(t, "aarch64-eir-linux-gnu", defaultTarget("arm64"))

	// Empty arch falls back to the host.
	host := defaultTarget("")
	assert.Equal(t, normalizeArch(runtime.GOARCH)+"-eir-linux-gnu", host)
}

func TestBuildJobs(t *testing.T) {
	assert.Equal(t, 7, buildJobs(&Config{Values: map[string]string{"EIR_JOBS": "7"}}))
	assert.Equal(t, runtime.NumCPU(), buildJobs(&Config{Values: map[string]string{}}))
	assert.Equal(t, runtime.NumCPU(), buildJobs(&Config{Values: map[string]string{"EIR_JOBS": "zero"}}))
	assert.Equal(t, runtime.NumCPU(), buildJobs(&Config{Values: map[string]string{"EIR_JOBS": "-2"}}))
}
