package eir

import (
	"context"
	"os"
	"os/exec"
)

// buildPhase executes the phase-specific build command for a package inside
// its phase build directory, under the phase's environment overlay. Success
// marks the build stamp; failure leaves the stamp absent so a re-run retries
// the same unit.
func buildPhase(ctx context.Context, bc *BuildContext, m *Manifest, phase string) error {
	cmdStr, ok := m.Build[phase]
	if !ok || cmdStr == "" {
		// Legitimate: header-only packages have nothing to build in some
		// phases. Diagnostic, not an error.
		cerr := &ConfigurationError{Package: m.Name, Phase: phase}
		if !bc.Quiet {
			colArrow.Print("-> ")
			colWarn.Printf("Skipping: %v\n", cerr)
		}
		return nil
	}

	return bc.Stamps.Once(m.Name, phase, StageBuild, func() error {
		buildDir := bc.phaseBuildDir(phase, m)
		if err := os.MkdirAll(buildDir, 0o755); err != nil {
			return &BuildError{Package: m.Name, Phase: phase, Command: cmdStr, Err: err}
		}

		if !bc.Quiet {
			colArrow.Print("-> ")
			colSuccess.Printf("Building %s (phase %s)\n", m.Name, phase)
		}

		cmd := exec.Command("sh", "-c", cmdStr)
		cmd.Dir = buildDir
		cmd.Env = phaseEnv(bc, phase, m)

		res, err := bc.Runner.Run(ctx, cmd)
		if err != nil {
			return &BuildError{Package: m.Name, Phase: phase, Command: cmdStr, Err: err}
		}
		if res.ExitCode != 0 {
			return &BuildError{
				Package:  m.Name,
				Phase:    phase,
				Command:  cmdStr,
				ExitCode: res.ExitCode,
				Output:   outputTail(res.Output, 20),
			}
		}
		return nil
	})
}
