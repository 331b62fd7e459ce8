package eir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFileStable(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("identical content"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("identical content"), 0o644))

	ha, err := hashFile(a)
	require.NoError(t, err)
	hb, err := hashFile(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64) // 32-byte BLAKE3 digest as hex
}

func TestHashFileDetectsSingleByteChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))
	before, err := hashFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("paXload"), 0o644))
	after, err := hashFile(path)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestVerifySourceMismatch(t *testing.T) {
	bc, _ := newTestContext(t)
	m := &Manifest{
		Name: "binutils",
		File: "binutils-2.30.tar.xz",
		URI:  "https://example.invalid/binutils-2.30.tar.xz",
		Hash: "0000000000000000000000000000000000000000000000000000000000000000",
	}
	require.NoError(t, os.WriteFile(m.SourcePath(bc), []byte("corrupt"), 0o644))

	err := verifySource(bc, m)
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "binutils", ie.Package)
	assert.Equal(t, m.Hash, ie.Expected)
	assert.NotEqual(t, ie.Expected, ie.Computed)

	// The message names both hash values for the operator.
	assert.Contains(t, err.Error(), ie.Expected)
	assert.Contains(t, err.Error(), ie.Computed)
}

func TestVerifySourceMatch(t *testing.T) {
	bc, _ := newTestContext(t)
	m := &Manifest{Name: "zlib", File: "zlib-1.3.tar.gz", URI: "https://example.invalid/z"}
	require.NoError(t, os.WriteFile(m.SourcePath(bc), []byte("content"), 0o644))

	sum, err := hashFile(m.SourcePath(bc))
	require.NoError(t, err)
	m.Hash = sum

	require.NoError(t, verifySource(bc, m))
}
