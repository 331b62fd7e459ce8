package eir

import "fmt"

// DownloadError reports a network or I/O failure while fetching a source.
type DownloadError struct {
	Package string
	URI     string
	Err     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed for %s (%s): %v", e.Package, e.URI, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// IntegrityError reports a content hash mismatch. It is always fatal and
// carries both hash values so the operator can diagnose without re-hashing.
type IntegrityError struct {
	Package  string
	File     string
	Expected string
	Computed string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s (%s): expected %s, computed %s",
		e.Package, e.File, e.Expected, e.Computed)
}

// UnsupportedFormatError reports an archive whose filename matches no known
// compression suffix.
type UnsupportedFormatError struct {
	File string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported archive format: %s", e.File)
}

// ExtractionError wraps any failure while opening or reading an archive.
// Callers never need to distinguish the underlying decompressor's failure
// modes.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PatchError reports a specific patch that failed to apply.
type PatchError struct {
	Package string
	Phase   string
	Patch   string
	Err     error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch %s failed for %s in phase %s: %v", e.Patch, e.Package, e.Phase, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

// BuildError reports a phase build command that exited non-zero or failed to
// launch.
type BuildError struct {
	Package  string
	Phase    string
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build failed for %s in phase %s (%q): %v", e.Package, e.Phase, e.Command, e.Err)
	}
	return fmt.Sprintf("build failed for %s in phase %s (%q): exit status %d", e.Package, e.Phase, e.Command, e.ExitCode)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ConfigurationError reports a (package, phase) pair that has no build
// command. It is demoted to a warning by the pipeline since a package may
// legitimately have nothing to build for some phases.
type ConfigurationError struct {
	Package string
	Phase   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("package %s has no build command for phase %s", e.Package, e.Phase)
}
