// Package discovery finds downloadable data files on publication listing
// pages. Statistical publications link their spreadsheets and CSV extracts
// directly from an HTML page per release; discovery parses that page,
// keeps the data-file links, and tags each with the reporting period
// embedded in its name.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/eamazon/datawarp-v3.1/internal/period"
)

// DataFile is one discovered downloadable file.
type DataFile struct {
	// URL is absolute, resolved against the listing page.
	URL string
	// Name is the file name portion of the URL, decoded.
	Name string
	// Ext is the lowercase extension including the dot.
	Ext string
	// Period is the reporting period parsed from the name or link text;
	// zero when none was found.
	Period period.Period
}

// dataExts are the file types worth downloading from a listing page.
var dataExts = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
	".zip":  true,
}

// FindDataFiles parses listing-page HTML and returns its data-file links
// in document order, de-duplicated by URL.
func FindDataFiles(pageURL string, html io.Reader) ([]DataFile, error) {
	doc, err := goquery.NewDocumentFromReader(html)
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url %s: %w", pageURL, err)
	}

	seen := map[string]bool{}
	var files []DataFile

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""

		name := path.Base(abs.Path)
		if decoded, err := url.PathUnescape(name); err == nil {
			name = decoded
		}
		ext := strings.ToLower(path.Ext(name))
		if !dataExts[ext] {
			return
		}
		if seen[abs.String()] {
			return
		}
		seen[abs.String()] = true

		// The period usually sits in the file name; fall back to the
		// human-readable link text.
		p, ok := period.FromFilename(name)
		if !ok {
			p, _ = period.FromFilename(sel.Text())
		}

		files = append(files, DataFile{
			URL:    abs.String(),
			Name:   name,
			Ext:    ext,
			Period: p,
		})
	})

	return files, nil
}

// MatchPattern reports whether a file name matches a pipeline file
// pattern. Patterns are case-insensitive substrings; an empty pattern
// matches everything.
func MatchPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
}

// Filter returns the files whose names match any of the patterns,
// preserving order. With no patterns it returns files unchanged.
func Filter(files []DataFile, patterns []string) []DataFile {
	if len(patterns) == 0 {
		return files
	}
	var out []DataFile
	for _, f := range files {
		for _, p := range patterns {
			if MatchPattern(f.Name, p) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// maxDownloadBytes caps a single download. Published workbooks run to tens
// of megabytes; anything past this is a wrong link, not data.
const maxDownloadBytes = 512 << 20

// Download fetches one discovered file to destDir and returns the local
// path and the byte count.
func Download(ctx context.Context, client *http.Client, f DataFile, destDir string) (string, int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request for %s: %w", f.URL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch %s: %w", f.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("fetch %s: unexpected status %s", f.URL, resp.Status)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", 0, err
	}
	dest := path.Join(destDir, f.Name)
	out, err := os.Create(dest)
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(out, io.LimitReader(resp.Body, maxDownloadBytes))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", n, fmt.Errorf("download %s: %w", f.URL, err)
	}
	if n >= maxDownloadBytes {
		_ = os.Remove(dest)
		return "", n, fmt.Errorf("download %s: exceeds %d byte cap", f.URL, int64(maxDownloadBytes))
	}
	return dest, n, nil
}
