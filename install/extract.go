package install

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"
)

type format int

const (
	formatTar format = iota
	formatTarGz
	formatTarXz
	formatTarZst
	formatZip
)

func detectFormat(name string) (format, error) {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, ".tar.gz"), strings.HasSuffix(n, ".tgz"):
		return formatTarGz, nil
	case strings.HasSuffix(n, ".tar.xz"), strings.HasSuffix(n, ".txz"):
		return formatTarXz, nil
	case strings.HasSuffix(n, ".tar.zst"), strings.HasSuffix(n, ".tzst"):
		return formatTarZst, nil
	case strings.HasSuffix(n, ".tar"):
		return formatTar, nil
	case strings.HasSuffix(n, ".zip"):
		return formatZip, nil
	}
	return 0, xerrors.Errorf("unsupported archive format: %s", name)
}

// Extract wipes dir and unpacks archive into it. Nothing from a previous
// extraction survives.
func Extract(archive string, dir string) error {
	ft, err := detectFormat(archive)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return xerrors.Errorf("wiping %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Errorf("mkdir: %w", err)
	}

	log.Infow("extracting archive", "archive", archive, "dir", dir)
	if ft == formatZip {
		return extractZip(archive, dir)
	}

	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close() //nolint

	var r io.Reader = f
	switch ft {
	case formatTarGz:
		zr, err := gzip.NewReader(f)
		if err != nil {
			return xerrors.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close() //nolint
		r = zr
	case formatTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return xerrors.Errorf("opening xz stream: %w", err)
		}
		r = xr
	case formatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return xerrors.Errorf("opening zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return extractTar(r, dir)
}

// safeJoin joins an archive entry name to dir, refusing names escaping it.
func safeJoin(dir string, name string) (string, error) {
	p := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return "", xerrors.Errorf("archive entry %q: %w", name, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", xerrors.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return p, nil
}

func extractTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	buf := make([]byte, 32<<10)
	for {
		header, err := tr.Next()
		switch err {
		default:
			return xerrors.Errorf("reading tar: %w", err)
		case io.EOF:
			return nil

		case nil:
		}

		target, err := safeJoin(dir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return xerrors.Errorf("mkdir: %w", err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, header.FileInfo().Mode().Perm(), buf); err != nil {
				return err
			}
		case tar.TypeSymlink:
			linked := filepath.Join(filepath.Dir(target), header.Linkname)
			if filepath.IsAbs(header.Linkname) {
				linked = header.Linkname
			}
			if _, err := safeJoin(dir, mustRel(dir, linked)); err != nil {
				log.Warnw("skipping symlink out of the archive", "name", header.Name, "target", header.Linkname)
				continue
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return xerrors.Errorf("mkdir: %w", err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return xerrors.Errorf("creating symlink %s: %w", target, err)
			}
		case tar.TypeLink:
			source, err := safeJoin(dir, header.Linkname)
			if err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil {
				return xerrors.Errorf("creating hard link %s: %w", target, err)
			}
		default:
			log.Debugw("skipping archive entry", "name", header.Name, "type", header.Typeflag)
		}
	}
}

func mustRel(dir string, p string) string {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return ".."
	}
	return rel
}

func extractZip(archive string, dir string) (err error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return xerrors.Errorf("opening zip %s: %w", archive, err)
	}
	defer func() {
		err = multierr.Append(err, zr.Close())
	}()

	buf := make([]byte, 32<<10)
	for _, zf := range zr.File {
		target, err := safeJoin(dir, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return xerrors.Errorf("mkdir: %w", err)
			}
			continue
		}
		if !zf.Mode().IsRegular() {
			log.Debugw("skipping archive entry", "name", zf.Name, "mode", zf.Mode())
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return xerrors.Errorf("opening %s in zip: %w", zf.Name, err)
		}
		err = writeFile(target, rc, zf.Mode().Perm(), buf)
		err = multierr.Append(err, rc.Close())
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, perm fs.FileMode, buf []byte) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return xerrors.Errorf("mkdir: %w", err)
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return xerrors.Errorf("creating file %s: %w", target, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if _, err := io.CopyBuffer(f, r, buf); err != nil {
		return xerrors.Errorf("writing %s: %w", target, err)
	}
	return nil
}
