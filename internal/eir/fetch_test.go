package eir

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSourceDownloadsOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tarball bytes"))
	}))
	defer srv.Close()

	bc, _ := newTestContext(t)
	m := &Manifest{Name: "zlib", File: "zlib-1.3.tar.gz", URI: srv.URL + "/zlib-1.3.tar.gz"}

	require.NoError(t, fetchSource(context.Background(), bc, m))

	data, err := os.ReadFile(m.SourcePath(bc))
	require.NoError(t, err)
	assert.Equal(t, "tarball bytes", string(data))

	// Neither the temp file nor the lock file survives a successful fetch.
	_, err = os.Stat(m.SourcePath(bc) + ".part")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(m.SourcePath(bc) + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestFetchSourceExistingFileIsNotRefetched(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("new bytes"))
	}))
	defer srv.Close()

	bc, _ := newTestContext(t)
	m := &Manifest{Name: "zlib", File: "zlib-1.3.tar.gz", URI: srv.URL + "/zlib-1.3.tar.gz"}
	require.NoError(t, os.WriteFile(m.SourcePath(bc), []byte("cached bytes"), 0o644))

	require.NoError(t, fetchSource(context.Background(), bc, m))

	assert.Equal(t, 0, hits)
	data, err := os.ReadFile(m.SourcePath(bc))
	require.NoError(t, err)
	assert.Equal(t, "cached bytes", string(data))
}

func TestFetchSourceHTTPErrorIsDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	bc, _ := newTestContext(t)
	m := &Manifest{Name: "zlib", File: "zlib-1.3.tar.gz", URI: srv.URL + "/missing.tar.gz"}

	err := fetchSource(context.Background(), bc, m)
	var de *DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "zlib", de.Package)
	assert.Equal(t, m.URI, de.URI)

	// No destination file appears on failure.
	_, statErr := os.Stat(m.SourcePath(bc))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchSourceUnreachableHostIsDownloadError(t *testing.T) {
	bc, _ := newTestContext(t)
	m := &Manifest{Name: "zlib", File: "zlib-1.3.tar.gz", URI: "http://127.0.0.1:1/zlib.tar.gz"}

	err := fetchSource(context.Background(), bc, m)
	var de *DownloadError
	require.ErrorAs(t, err, &de)

	entries, readErr := os.ReadDir(bc.SourcesDir)
	require.NoError(t, readErr)
	for _, e := range entries {
		assert.NotEqual(t, m.File, e.Name(), "partial download must not land at the destination")
	}
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := parseS3URI("s3://eir-mirror/sources/gcc-13.2.0.tar.xz")
	require.NoError(t, err)
	assert.Equal(t, "eir-mirror", bucket)
	assert.Equal(t, "sources/gcc-13.2.0.tar.xz", key)

	_, _, err = parseS3URI("https://example.com/x")
	assert.Error(t, err)
	_, _, err = parseS3URI("s3://bucket-only")
	assert.Error(t, err)
}
