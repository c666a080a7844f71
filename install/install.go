// Package install downloads miner releases and locates their executables.
package install

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"

	"github.com/squarefactory/minerd/config"
)

var log = logging.Logger("install")

const extractDir = "extract"

type Installer struct {
	home        string
	client      *http.Client
	progress    bool
	progressOut io.Writer
}

type Option func(*Installer)

func WithHTTPClient(c *http.Client) Option {
	return func(i *Installer) {
		i.client = c
	}
}

// WithProgress enables or disables the download progress bar. It is enabled by
// default when stderr is a terminal.
func WithProgress(enabled bool) Option {
	return func(i *Installer) {
		i.progress = enabled
	}
}

// NewInstaller installs miners below home, one directory per miner.
func NewInstaller(home string, opts ...Option) *Installer {
	i := &Installer{
		home:        home,
		client:      &http.Client{Timeout: 30 * time.Minute},
		progress:    isatty.IsTerminal(os.Stderr.Fd()),
		progressOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Dir returns the working directory of a miner.
func (i *Installer) Dir(name string) string {
	return filepath.Join(i.home, name)
}

// Install makes sure the archive of m is present, extracts it afresh and
// returns the path of its executable.
func (i *Installer) Install(ctx context.Context, m config.Miner) (string, error) {
	archiveURL := m.ArchiveURL
	if archiveURL == "" {
		u, err := i.ResolveAsset(ctx, m.ReleasePage, m.AssetPattern)
		if err != nil {
			return "", xerrors.Errorf("miner %s: %w", m.Name, err)
		}
		log.Infow("resolved release asset", "miner", m.Name, "url", u)
		archiveURL = u
	}

	name, err := archiveName(archiveURL)
	if err != nil {
		return "", xerrors.Errorf("miner %s: %w", m.Name, err)
	}
	dir := i.Dir(m.Name)
	archive := filepath.Join(dir, name)

	if err := i.Download(ctx, archiveURL, archive); err != nil {
		return "", xerrors.Errorf("miner %s: %w", m.Name, err)
	}
	if err := Extract(archive, filepath.Join(dir, extractDir)); err != nil {
		return "", xerrors.Errorf("miner %s: extracting %s: %w", m.Name, archive, err)
	}
	bin, err := Locate(filepath.Join(dir, extractDir), m.Binary)
	if err != nil {
		return "", xerrors.Errorf("miner %s: %w", m.Name, err)
	}

	log.Infow("miner installed", "miner", m.Name, "binary", bin)
	return bin, nil
}

func archiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", xerrors.Errorf("invalid archive url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", xerrors.Errorf("archive url %q has no file name", rawURL)
	}
	return name, nil
}
