package eir

import (
	"archive/tar"
	"compress/bzip2"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"
)

// decompressor wraps a raw archive stream into a tar-format byte stream.
type decompressor func(io.Reader) (io.Reader, error)

// formats maps archive suffixes to decompressor constructors. New formats
// are added here without touching any call site. Longest suffixes first so
// ".tar.gz" wins over ".tar".
var formats = []struct {
	suffix string
	open   decompressor
}{
	{".tar.bz2", func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil }},
	{".tar.zst", func(r io.Reader) (io.Reader, error) { return zstd.NewReader(r) }},
	{".tar.gz", func(r io.Reader) (io.Reader, error) { return pgzip.NewReader(r) }},
	{".tar.xz", func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) }},
	{".tgz", func(r io.Reader) (io.Reader, error) { return pgzip.NewReader(r) }},
	{".tar", func(r io.Reader) (io.Reader, error) { return r, nil }},
}

// classifyArchive picks the decompressor for a source file by name.
func classifyArchive(name string) (decompressor, error) {
	for _, f := range formats {
		if strings.HasSuffix(name, f.suffix) {
			return f.open, nil
		}
	}
	return nil, &UnsupportedFormatError{File: name}
}

// extractArchive unpacks a source archive underneath destRoot, preserving
// modes and timestamps and restoring ownership when running as root. The
// progress callback fires once per completed entry. All stream failures are
// wrapped into a single ExtractionError naming the archive.
func extractArchive(src, destRoot string, progress func(name string)) error {
	open, err := classifyArchive(src)
	if err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return &ExtractionError{File: src, Err: err}
	}
	defer f.Close()

	r, err := open(f)
	if err != nil {
		return &ExtractionError{File: src, Err: err}
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &ExtractionError{File: src, Err: err}
		}

		// Skip PAX headers (global or per-file)
		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			if _, err := io.Copy(io.Discard, tr); err != nil {
				return &ExtractionError{File: src, Err: err}
			}
			continue
		}

		targetPath := filepath.Join(destRoot, hdr.Name)

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return &ExtractionError{File: src, Err: err}
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(hdr.Mode)); err != nil {
				return &ExtractionError{File: src, Err: err}
			}
			_ = os.Chtimes(targetPath, hdr.AccessTime, hdr.ModTime)
			if os.Geteuid() == 0 {
				_ = os.Chown(targetPath, hdr.Uid, hdr.Gid)
			}
		case tar.TypeReg:
			outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return &ExtractionError{File: src, Err: err}
			}
			if _, err := io.Copy(outFile, tr); err != nil {
				outFile.Close()
				return &ExtractionError{File: src, Err: err}
			}
			outFile.Close()
			_ = os.Chtimes(targetPath, hdr.AccessTime, hdr.ModTime)
			if os.Geteuid() == 0 {
				_ = os.Chown(targetPath, hdr.Uid, hdr.Gid)
			}
		case tar.TypeSymlink:
			_ = os.Remove(targetPath)
			if err := os.Symlink(hdr.Linkname, targetPath); err != nil && !os.IsExist(err) {
				return &ExtractionError{File: src, Err: err}
			}
			if os.Geteuid() == 0 {
				_ = unix.Lchown(targetPath, hdr.Uid, hdr.Gid)
			}
		default:
			debugf("Skipping unsupported tar entry type %c: %s\n", hdr.Typeflag, hdr.Name)
			continue
		}

		if progress != nil {
			progress(hdr.Name)
		}
	}

	return nil
}
