package install

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/xerrors"
)

// ResolveAsset scrapes a release page and returns the absolute URL of the
// first link whose href matches pattern.
func (i *Installer) ResolveAsset(ctx context.Context, page string, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", xerrors.Errorf("invalid asset pattern %q: %w", pattern, err)
	}
	base, err := url.Parse(page)
	if err != nil {
		return "", xerrors.Errorf("invalid release page %q: %w", page, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return "", err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return "", xerrors.Errorf("fetching release page %s: %w", page, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", xerrors.Errorf("fetching release page %s: %s", page, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", xerrors.Errorf("parsing release page %s: %w", page, err)
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !re.MatchString(href) {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			log.Warnw("skipping invalid link", "page", page, "href", href, "err", err)
			return true
		}
		found = base.ResolveReference(ref).String()
		return false
	})
	if found == "" {
		return "", xerrors.Errorf("no link matching %q on release page %s", pattern, page)
	}
	return found, nil
}
