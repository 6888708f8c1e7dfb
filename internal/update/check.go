// Package update checks for newer versions of Jellycord via the release
// manifest published in the project repository.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/mod/semver"

	"tools.zach/dev/jellycord/internal/paths"
)

// Set at build time via:
//
//	-X tools.zach/dev/jellycord/internal/update.Owner=...
//	-X tools.zach/dev/jellycord/internal/update.Repo=...
var (
	Owner string
	Repo  string
)

// manifestLimit bounds the manifest body.
const manifestLimit = 64 << 10

// ManifestURL returns the raw GitHub URL of the release manifest on the main
// branch, or "" when the build did not set an owner and repository.
func ManifestURL() string {
	if Owner == "" || Repo == "" {
		return ""
	}
	return "https://raw.githubusercontent.com/" + Owner + "/" + Repo + "/main/" + paths.ReleaseManifest
}

// ///////////////////////////////////////////////
// Checker
// ///////////////////////////////////////////////

// Checker fetches the release manifest.
type Checker struct {
	url  string
	http *retryablehttp.Client
}

// NewChecker returns a Checker for the manifest at url.
func NewChecker(url string) *Checker {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 1
	hc.RetryWaitMin = 500 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.HTTPClient.Timeout = 5 * time.Second
	hc.Logger = nil
	return &Checker{url: url, http: hc}
}

// Latest returns the version stored under the manifest's "." key, which
// names the latest stable release.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", c.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, manifestLimit))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var manifest map[string]string
	if err := json.Unmarshal(body, &manifest); err != nil {
		return "", fmt.Errorf("parsing manifest: %w", err)
	}
	return manifest["."], nil
}

// Newer reports the latest version when it is newer than current. It returns
// "" when current is up to date or either version is not semver.
func (c *Checker) Newer(ctx context.Context, current string) (string, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		return "", err
	}
	if latest == "" || !Less(current, latest) {
		return "", nil
	}
	return latest, nil
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Check logs when a newer release than current is published. Failures are
// logged at debug level and otherwise ignored.
func Check(ctx context.Context, current string) {
	url := ManifestURL()
	if url == "" {
		slog.Debug("skipping version check: no release repository configured")
		return
	}
	latest, err := NewChecker(url).Newer(ctx, current)
	if err != nil {
		slog.Debug("version check failed", "error", err)
		return
	}
	if latest != "" {
		slog.Info("new version available", "current", current, "latest", latest)
	}
}

// Less reports whether version a precedes b. Versions may omit the leading
// "v". A pre-release precedes its release. Invalid versions never compare
// less.
func Less(a, b string) bool {
	va, vb := canonical(a), canonical(b)
	if !semver.IsValid(va) || !semver.IsValid(vb) {
		return false
	}
	return semver.Compare(va, vb) < 0
}

func canonical(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
