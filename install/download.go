package install

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"golang.org/x/xerrors"
)

// Download fetches url into dest unless dest already exists. The archive is
// not verified: an existing file is trusted as is.
func (i *Installer) Download(ctx context.Context, url string, dest string) error {
	if st, err := os.Stat(dest); err == nil {
		log.Infow("archive already present, skipping download", "path", dest, "size", humanize.Bytes(uint64(st.Size())))
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return xerrors.Errorf("stat %s: %w", dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return xerrors.Errorf("mkdir: %w", err)
	}
	log.Infow("downloading archive", "url", url, "path", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return xerrors.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return xerrors.Errorf("downloading %s: %s", url, resp.Status)
	}

	// a download interrupted halfway must not look like a cached archive
	part := dest + ".part"
	f, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return xerrors.Errorf("creating %s: %w", part, err)
	}

	var body io.Reader = resp.Body
	var bar *pb.ProgressBar
	if i.progress {
		bar = pb.New64(resp.ContentLength).
			SetTemplate(pb.Full).
			Set(pb.Bytes, true).
			SetWriter(i.progressOut).
			Start()
		body = bar.NewProxyReader(resp.Body)
	}

	n, err := io.Copy(f, body)
	if bar != nil {
		bar.Finish()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return xerrors.Errorf("downloading %s: %w", url, err)
	}
	if err := os.Rename(part, dest); err != nil {
		return xerrors.Errorf("renaming %s: %w", part, err)
	}

	log.Infow("archive downloaded", "path", dest, "size", humanize.Bytes(uint64(n)))
	return nil
}
