package eir

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load eir.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge EIR_* env overrides
	mergeEnvOverrides(cfg)

	return cfg, nil
}

// Merge EIR_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "EIR_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

// BuildContext carries the resolved paths and collaborators for one run.
// It is threaded explicitly into the fetch/patch/build steps so no step
// depends on mutable global state.
type BuildContext struct {
	Cfg *Config

	ManifestDir  string // per-package manifest files
	SourcesDir   string // downloaded archives
	BuildRoot    string // extracted trees and per-phase build dirs
	StateDir     string // stamps and other durable run state
	ToolchainDir string // install prefix of the cross toolchain

	Target string // cross target triple for the toolchain phase
	Jobs   int    // parallelism passed to build commands via MAKEFLAGS

	Stamps *StampStore
	Runner Runner
	Quiet  bool
}

func (c *Config) value(key, fallback string) string {
	if v := c.Values[key]; v != "" {
		return v
	}
	return fallback
}

// newBuildContext resolves the directory layout from config. All paths are
// anchored at EIR_ROOT (default: the working directory).
func newBuildContext(cfg *Config) (*BuildContext, error) {
	root := cfg.value("EIR_ROOT", ".")

	bc := &BuildContext{
		Cfg:          cfg,
		ManifestDir:  cfg.value("EIR_MANIFEST_DIR", filepath.Join(root, "manifests")),
		SourcesDir:   cfg.value("EIR_SOURCES_DIR", filepath.Join(root, "sources")),
		BuildRoot:    cfg.value("EIR_BUILD_DIR", filepath.Join(root, "build")),
		StateDir:     cfg.value("EIR_STATE_DIR", filepath.Join(root, "stamps")),
		ToolchainDir: cfg.value("EIR_TOOLCHAIN_DIR", filepath.Join(root, "toolchain")),
		Target:       cfg.value("EIR_TARGET", defaultTarget(cfg.Values["EIR_ARCH"])),
		Jobs:         buildJobs(cfg),
	}

	for _, dir := range []string{bc.SourcesDir, bc.BuildRoot, bc.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	bc.Stamps = NewStampStore(bc.StateDir)
	bc.Runner = &Executor{}

	if cfg.Values["EIR_DEBUG"] == "1" {
		Debug = true
	}
	if cfg.Values["EIR_VERBOSE"] == "1" {
		Verbose = true
	}
	return bc, nil
}

// srcDir returns the directory the package's archive unpacks into. The
// longname is assumed, not verified, to match the archive's top-level entry.
func (bc *BuildContext) srcDir(m *Manifest) string {
	return filepath.Join(bc.BuildRoot, m.Longname())
}

// phaseBuildDir returns the out-of-tree build directory for one phase.
func (bc *BuildContext) phaseBuildDir(phase string, m *Manifest) string {
	return filepath.Join(bc.BuildRoot, phase, m.Longname())
}
