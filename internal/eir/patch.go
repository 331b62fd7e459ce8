package eir

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// patchDir returns the phase/package-specific patch directory. Its absence
// means zero patches, not an error.
func patchDir(bc *BuildContext, phase string, m *Manifest) string {
	return filepath.Join(bc.ManifestDir, "patches", phase, m.Name)
}

// applyPatches applies every patch for (package, phase) in lexicographic
// order from within the extracted source tree. A failing patch is fatal and
// aborts before any later patch or the build step. Guarded by the patch
// stamp so re-runs never double-apply.
func applyPatches(ctx context.Context, bc *BuildContext, m *Manifest, phase string) error {
	return bc.Stamps.Once(m.Name, phase, StagePatch, func() error {
		dir := patchDir(bc, phase, m)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			debugf("no patches for %s in phase %s\n", m.Name, phase)
			return nil
		}
		if err != nil {
			return &PatchError{Package: m.Name, Phase: phase, Err: err}
		}

		var patches []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".patch") {
				continue
			}
			patches = append(patches, e.Name())
		}
		sort.Strings(patches)

		srcDir := bc.srcDir(m)
		for _, name := range patches {
			if !bc.Quiet {
				colArrow.Print("-> ")
				colSuccess.Printf("Applying patch %s to %s\n", name, m.Name)
			}
			cmd := exec.Command("patch", "-p1", "-i", filepath.Join(dir, name))
			cmd.Dir = srcDir
			cmd.Env = phaseEnv(bc, phase, m)

			res, err := bc.Runner.Run(ctx, cmd)
			if err != nil {
				return &PatchError{Package: m.Name, Phase: phase, Patch: name, Err: err}
			}
			if res.ExitCode != 0 {
				return &PatchError{
					Package: m.Name,
					Phase:   phase,
					Patch:   name,
					Err:     fmt.Errorf("exit status %d: %s", res.ExitCode, outputTail(res.Output, 5)),
				}
			}
		}
		return nil
	})
}
