package eir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes one source package. Immutable once loaded.
type Manifest struct {
	Name    string            `yaml:"name"`
	Version string            `yaml:"version"`
	File    string            `yaml:"file"`
	URI     string            `yaml:"uri"`
	Hash    string            `yaml:"hash"`
	Build   map[string]string `yaml:"build"`
}

// suffixStart matches the first dot followed by at least two lowercase
// letters. Everything from there on is the archive suffix; version dots
// (".2", ".30") are followed by digits and survive.
var suffixStart = regexp.MustCompile(`\.[a-z]{2}`)

// Longname is the directory name the archive is expected to unpack into,
// e.g. binutils-2.30.tar.xz -> binutils-2.30.
func (m *Manifest) Longname() string {
	return longname(m.File)
}

func longname(file string) string {
	loc := suffixStart.FindStringIndex(file)
	if loc == nil {
		return file
	}
	return file[:loc[0]]
}

// EnvName is the package name uppercased for the derived runtime variable
// namespace (BINUTILS_VERSION, BINUTILS_SRC, ...).
func (m *Manifest) EnvName() string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, m.Name)
	return mapped
}

// SourcePath is the on-disk location of the downloaded archive.
func (m *Manifest) SourcePath(bc *BuildContext) string {
	return filepath.Join(bc.SourcesDir, m.File)
}

func (m *Manifest) validate(path string) error {
	switch {
	case m.Name == "":
		return fmt.Errorf("manifest %s: name is required", path)
	case m.File == "":
		return fmt.Errorf("manifest %s: file is required", path)
	case m.URI == "":
		return fmt.Errorf("manifest %s: uri is required", path)
	case m.Hash == "":
		return fmt.Errorf("manifest %s: hash is required", path)
	}
	return nil
}

// LoadManifest reads and validates a single package manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("could not parse manifest %s: %w", path, err)
	}
	if err := m.validate(path); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifests reads every *.yaml manifest in dir, sorted by package name.
// Duplicate package names are fatal at load time.
func LoadManifests(dir string) ([]*Manifest, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no manifests found in %s", dir)
	}

	seen := make(map[string]string, len(paths))
	manifests := make([]*Manifest, 0, len(paths))
	for _, path := range paths {
		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("duplicate package %s (%s and %s)", m.Name, prev, path)
		}
		seen[m.Name] = path
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Name < manifests[j].Name })
	return manifests, nil
}
