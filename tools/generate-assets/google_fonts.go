// google_fonts.go downloads font files through the Google Fonts CSS API.
//
// Font specs use the format "google:FAMILY:WEIGHT" (e.g. "google:Inter:800").
// Converted fonts are cached so reruns work offline.

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tdewolff/font"
)

// fontURLRe extracts the font file URL from the CSS response, e.g.
// url(https://fonts.gstatic.com/s/inter/v18/xxx.woff2).
var fontURLRe = regexp.MustCompile(`url\((https://fonts\.gstatic\.com/[^)]+)\)`)

// cssEndpoint is the Google Fonts CSS API. Tests point it at a local server.
var cssEndpoint = "https://fonts.googleapis.com/css2"

// ParseGoogleFontSpec splits a "google:Family:Weight" spec.
func ParseGoogleFontSpec(spec string) (family, weight string, ok bool) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] != "google" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// FetchGoogleFont returns the SFNT bytes for spec, downloading and caching
// them in cacheDir on first use.
func FetchGoogleFont(client *http.Client, spec, cacheDir string) ([]byte, error) {
	family, weight, ok := ParseGoogleFontSpec(spec)
	if !ok {
		return nil, fmt.Errorf("invalid google font spec %q: expected google:FAMILY:WEIGHT", spec)
	}

	cacheFile := filepath.Join(cacheDir, fmt.Sprintf("%s-%s.ttf", family, weight))
	if data, err := os.ReadFile(cacheFile); err == nil {
		return data, nil
	}

	css, err := fetch(client, fmt.Sprintf("%s?family=%s:wght@%s", cssEndpoint, url.QueryEscape(family), weight), 1<<20)
	if err != nil {
		return nil, fmt.Errorf("fetch CSS for %s wght@%s: %w", family, weight, err)
	}
	m := fontURLRe.FindSubmatch(css)
	if m == nil {
		return nil, fmt.Errorf("no font URL in CSS for %s wght@%s", family, weight)
	}
	fontURL := string(m[1])

	data, err := fetch(client, fontURL, 10<<20)
	if err != nil {
		return nil, fmt.Errorf("download font: %w", err)
	}
	if data, err = toSFNT(fontURL, data); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cacheDir, 0o755); err == nil {
		err = os.WriteFile(cacheFile, data, 0o644)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "  warning: failed to cache font: %v\n", err)
	}
	return data, nil
}

// fetch GETs u and returns at most limit bytes of the body. The User-Agent
// makes Google answer with WOFF2 URLs.
func fetch(client *http.Client, u string, limit int64) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// toSFNT converts WOFF2 data, detected by name or magic bytes, to SFNT.
// Other data is returned unchanged.
func toSFNT(name string, data []byte) ([]byte, error) {
	woff2 := strings.HasSuffix(strings.ToLower(name), ".woff2") ||
		(len(data) >= 4 && string(data[:4]) == "wOF2")
	if !woff2 {
		return data, nil
	}
	sfnt, err := font.ToSFNT(data)
	if err != nil {
		return nil, fmt.Errorf("convert woff2 to sfnt: %w", err)
	}
	return sfnt, nil
}
