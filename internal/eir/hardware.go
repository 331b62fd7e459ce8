package eir

import (
	"runtime"
	"strconv"
)

// normalizeArch maps Go/uname architecture spellings onto toolchain ones.
func normalizeArch(arch string) string {
	switch arch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return arch
	}
}

// defaultTarget derives the cross target triple for the toolchain phase,
// falling back to the host architecture.
func defaultTarget(arch string) string {
	if arch == "" {
		arch = runtime.GOARCH
	}
	return normalizeArch(arch) + "-eir-linux-gnu"
}

// buildJobs picks the make-level parallelism: EIR_JOBS wins, otherwise every
// host CPU.
func buildJobs(cfg *Config) int {
	if v := cfg.Values["EIR_JOBS"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}
