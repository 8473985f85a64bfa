// Package archive extracts uploaded project archives.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Format is a supported archive layout.
type Format string

const (
	FormatNone   Format = ""
	FormatZip    Format = "zip"
	FormatTar    Format = "tar"
	FormatTarGz  Format = "tar.gz"
	FormatTarBz2 Format = "tar.bz2"
	FormatTarXz  Format = "tar.xz"
	FormatTarZst Format = "tar.zst"
)

var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.bz2", FormatTarBz2},
	{".tbz2", FormatTarBz2},
	{".tar.xz", FormatTarXz},
	{".txz", FormatTarXz},
	{".tar.zst", FormatTarZst},
	{".tzst", FormatTarZst},
	{".tar", FormatTar},
	{".zip", FormatZip},
}

// Detect returns the archive format implied by name, or FormatNone.
func Detect(name string) Format {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.format
		}
	}
	return FormatNone
}

// Limits bound what Extract writes. Zero fields are unlimited.
type Limits struct {
	MaxFiles int
	MaxBytes int64
}

// ErrLimit is returned when an archive exceeds Limits.
var ErrLimit = errors.New("archive exceeds extraction limits")

// ErrUnsupported is returned for names Detect does not recognize.
var ErrUnsupported = errors.New("unsupported archive format")

// Extract unpacks the archive at src into dest. Entries whose names are not
// local to dest are rejected. Symlinks, hard links and device nodes are skipped.
func Extract(ctx context.Context, src, dest string, limits Limits) error {
	format := Detect(src)
	if format == FormatNone {
		return fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(src))
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	x := &extractor{ctx: ctx, dest: dest, limits: limits}
	if format == FormatZip {
		return x.zip(src)
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	r, closeFn, err := decompress(format, f)
	if err != nil {
		return fmt.Errorf("opening %s stream: %w", format, err)
	}
	defer closeFn()
	return x.tar(r)
}

func decompress(format Format, r io.Reader) (io.Reader, func(), error) {
	switch format {
	case FormatTar:
		return r, func() {}, nil
	case FormatTarGz:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	case FormatTarBz2:
		return bzip2.NewReader(r), func() {}, nil
	case FormatTarXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, func() {}, nil
	case FormatTarZst:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
}

type extractor struct {
	ctx     context.Context
	dest    string
	limits  Limits
	files   int
	written int64
}

// target maps an entry name to a path under dest.
func (x *extractor) target(name string) (string, error) {
	clean := filepath.FromSlash(strings.TrimPrefix(name, "./"))
	clean = strings.TrimRight(clean, string(filepath.Separator))
	if clean == "" || clean == "." {
		return "", nil
	}
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("entry %q escapes the extraction directory", name)
	}
	return filepath.Join(x.dest, clean), nil
}

func (x *extractor) tar(r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		path, err := x.target(hdr.Name)
		if err != nil {
			return err
		}
		if path == "" {
			continue
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := x.writeFile(path, fs.FileMode(hdr.Mode), tr); err != nil {
				return err
			}
		}
	}
}

func (x *extractor) zip(src string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		path, err := x.target(f.Name)
		if err != nil {
			return err
		}
		if path == "" {
			continue
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("opening zip entry %q: %w", f.Name, err)
			}
			err = x.writeFile(path, mode, rc)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *extractor) writeFile(path string, mode fs.FileMode, r io.Reader) error {
	x.files++
	if x.limits.MaxFiles > 0 && x.files > x.limits.MaxFiles {
		return fmt.Errorf("%w: more than %d files", ErrLimit, x.limits.MaxFiles)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0600)
	if err != nil {
		return err
	}
	if x.limits.MaxBytes > 0 {
		r = io.LimitReader(r, x.limits.MaxBytes-x.written+1)
	}
	n, err := io.Copy(f, r)
	x.written += n
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	if x.limits.MaxBytes > 0 && x.written > x.limits.MaxBytes {
		return fmt.Errorf("%w: more than %d bytes", ErrLimit, x.limits.MaxBytes)
	}
	return nil
}

// Flatten moves the contents of dir's only child up into dir when that child
// is a directory. It reports whether anything moved.
func Flatten(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return false, nil
	}
	inner := filepath.Join(dir, entries[0].Name())
	tmp := filepath.Join(filepath.Dir(dir), "."+filepath.Base(dir)+".flatten")
	if err := os.Rename(inner, tmp); err != nil {
		return false, err
	}
	children, err := os.ReadDir(tmp)
	if err != nil {
		return false, err
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(tmp, c.Name()), filepath.Join(dir, c.Name())); err != nil {
			return false, err
		}
	}
	return true, os.Remove(tmp)
}
