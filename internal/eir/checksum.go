package eir

import (
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// hashFile computes the BLAKE3-256 digest of a local file as lowercase hex
// (b3sum compatible).
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// verifySource checks the downloaded archive against the manifest hash.
// It must run strictly before extraction: a mismatch aborts the unit before
// any archive content reaches the build tree.
func verifySource(bc *BuildContext, m *Manifest) error {
	path := m.SourcePath(bc)
	computed, err := hashFile(path)
	if err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	if computed != m.Hash {
		return &IntegrityError{
			Package:  m.Name,
			File:     m.File,
			Expected: m.Hash,
			Computed: computed,
		}
	}
	debugf("verified %s (%s)\n", m.File, computed)
	return nil
}
