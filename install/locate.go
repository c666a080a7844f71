package install

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/xerrors"
)

// NotFoundError is returned by Locate when no file carries the expected name.
type NotFoundError struct {
	Binary string
	Dir    string
	// Files lists the extracted files, relative to Dir.
	Files []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "binary %q not found in %s", e.Binary, e.Dir)
	if len(e.Files) == 0 {
		b.WriteString(", the archive is empty")
		return b.String()
	}
	b.WriteString(", archive contents:")
	for _, f := range e.Files {
		b.WriteString("\n  ")
		b.WriteString(f)
	}
	return b.String()
}

// Locate searches dir recursively for a regular file named exactly binary and
// marks it executable.
func Locate(dir string, binary string) (string, error) {
	var found string
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		if found == "" && d.Type().IsRegular() && d.Name() == binary {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", xerrors.Errorf("walking %s: %w", dir, err)
	}

	if found == "" {
		sort.Strings(files)
		return "", &NotFoundError{Binary: binary, Dir: dir, Files: files}
	}
	if err := os.Chmod(found, 0o755); err != nil {
		return "", xerrors.Errorf("chmod %s: %w", found, err)
	}
	return found, nil
}
