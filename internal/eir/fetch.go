package eir

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	// Default is 10s; slow upstream hosts (busybox.net and friends) need more.
	transport.TLSHandshakeTimeout = 30 * time.Second

	return &http.Client{Transport: transport}
}

// fetchSource streams the manifest's URI into the sources directory. The
// write goes through a temp file and a final rename, so a partial transfer
// never occupies the destination path. An existing destination file is not
// trusted; the verifier decides whether it is usable.
func fetchSource(ctx context.Context, bc *BuildContext, m *Manifest) error {
	dest := m.SourcePath(bc)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}

	// Lock around the destination so overlapping runs (or parallel units)
	// never download the same file twice.
	lockPath := dest + ".lock"
	lFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	defer lFile.Close()
	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	defer unix.Flock(int(lFile.Fd()), unix.LOCK_UN)

	// Another unit may have finished the download while we waited.
	if _, err := os.Stat(dest); err == nil {
		debugf("already downloaded: %s\n", dest)
		_ = os.Remove(lockPath)
		return nil
	}

	if !bc.Quiet {
		colArrow.Print("-> ")
		colSuccess.Printf("Fetching source: %s\n", m.File)
	}

	var fetchErr error
	if strings.HasPrefix(m.URI, "s3://") {
		fetchErr = fetchFromMirror(ctx, bc, m, dest)
	} else {
		fetchErr = fetchHTTP(ctx, bc, m, dest)
	}
	if fetchErr != nil {
		return fetchErr
	}

	_ = os.Remove(lockPath)
	debugf("downloaded %s -> %s\n", m.URI, dest)
	return nil
}

func fetchHTTP(ctx context.Context, bc *BuildContext, m *Manifest, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URI, nil)
	if err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}

	resp, err := newHTTPClient().Do(req)
	if err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: fmt.Errorf("status %s", resp.Status)}
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}

	var w io.Writer = out
	// Progress only when the size is known and we are talking to a terminal.
	// An unknown Content-Length disables reporting, nothing else.
	if resp.ContentLength > 0 && !bc.Quiet && term.IsTerminal(int(os.Stdout.Fd())) {
		bar := progressbar.DefaultBytes(resp.ContentLength, m.File)
		w = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	return nil
}

func fetchFromMirror(ctx context.Context, bc *BuildContext, m *Manifest, dest string) error {
	mc, err := NewMirrorClient(bc.Cfg)
	if err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	bucket, key, err := parseS3URI(m.URI)
	if err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	if err := mc.DownloadTo(ctx, bucket, key, out); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return &DownloadError{Package: m.Name, URI: m.URI, Err: err}
	}
	return nil
}
