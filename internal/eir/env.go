package eir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Named build phases. The toolchain phase is the only one with a
// cross-compilation environment overlay.
const (
	PhaseBootstrap = "bootstrap"
	PhaseToolchain = "toolchain"
)

// toolchainTools maps environment variable names to the tool suffix appended
// to the target triple.
var toolchainTools = map[string]string{
	"AR":      "ar",
	"AS":      "as",
	"LD":      "ld",
	"NM":      "nm",
	"RANLIB":  "ranlib",
	"READELF": "readelf",
	"STRIP":   "strip",
	"OBJCOPY": "objcopy",
	"OBJDUMP": "objdump",
}

// phaseEnv produces the full environment for subprocess execution in one
// phase. It is a pure function of its inputs: the overlay is materialized
// over a copy of the process environment and never written back, so
// concurrently running phases cannot observe each other's variables.
func phaseEnv(bc *BuildContext, phase string, m *Manifest) []string {
	overlay := map[string]string{
		"EIR_BUILD_DIR": bc.phaseBuildDir(phase, m),
		"EIR_PHASE":     phase,
		"MAKEFLAGS":     fmt.Sprintf("-j%d", bc.Jobs),
	}

	name := m.EnvName()
	overlay[name+"_VERSION"] = m.Version
	overlay[name+"_SRC"] = bc.srcDir(m)

	if phase == PhaseToolchain {
		tgt := bc.Target
		libDir := filepath.Join(bc.ToolchainDir, "lib")
		for envVar, tool := range toolchainTools {
			overlay[envVar] = fmt.Sprintf("%s-%s", tgt, tool)
		}
		// -B points the compilers at the toolchain's installed runtime
		// libraries so the cross linker resolves crt files and libgcc there.
		overlay["CC"] = fmt.Sprintf("%s-gcc -B%s", tgt, libDir)
		overlay["CXX"] = fmt.Sprintf("%s-g++ -B%s", tgt, libDir)
		overlay["EIR_TGT"] = tgt

		path := os.Getenv("PATH")
		if path == "" {
			path = "/usr/bin:/bin"
		}
		overlay["PATH"] = filepath.Join(bc.ToolchainDir, "bin") + ":" + path
	}

	env := make([]string, 0, len(os.Environ())+len(overlay))
	for _, kv := range os.Environ() {
		key := kv[:strings.IndexByte(kv, '=')+1]
		if _, shadowed := overlay[strings.TrimSuffix(key, "=")]; shadowed {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overlay[k])
	}
	return env
}

// envValue extracts a variable from an environment slice, for diagnostics
// and tests.
func envValue(env []string, key string) (string, bool) {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return strings.TrimPrefix(env[i], prefix), true
		}
	}
	return "", false
}
