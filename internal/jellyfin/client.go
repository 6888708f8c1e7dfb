// Package jellyfin is a minimal client for the Jellyfin (and Emby) REST API,
// covering the session, user, and image endpoints the presence daemon needs.
//
// Servers differ in URL prefix and accepted auth header, so the client probes
// a small matrix of endpoint prefixes and header shapes on first use and
// remembers the first combination that answers. Transport-level retries are
// delegated to go-retryablehttp.
package jellyfin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

// ErrRejected is returned when every endpoint and header combination was
// answered with a client error (bad key, wrong URL, or missing route).
var ErrRejected = errors.New("jellyfin rejected all request variants")

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

const (
	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 10 << 20

	// clientName identifies the daemon in the MediaBrowser auth header.
	clientName = "Jellycord"

	// ImagePrimary is the poster/cover image type.
	ImagePrimary = "Primary"

	// imageMaxWidth bounds the size of artwork URLs handed to Discord.
	imageMaxWidth = 1024
)

// prefixes lists the URL path prefixes tried in order. Emby and older
// Jellyfin reverse-proxy setups only answer under /emby.
var prefixes = []string{"", "/emby"}

// authStyle selects which headers carry the API key.
type authStyle int

const (
	authMediaBrowser authStyle = iota // X-Emby-Authorization + X-Emby-Token
	authBearerLike                    // Authorization: MediaBrowser Token=... + X-Emby-Token
	authTokenOnly                     // X-Emby-Token only
)

var authStyles = []authStyle{authMediaBrowser, authBearerLike, authTokenOnly}

// variant is one endpoint prefix and auth style pairing.
type variant struct {
	prefix string
	auth   authStyle
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Options configures a [Client].
type Options struct {
	// BaseURL is the server root, e.g. "http://localhost:8096".
	BaseURL string
	// APIKey is the server API key sent with every request.
	APIKey string
	// DeviceID identifies this daemon to the server.
	DeviceID string
	// Version is reported in the MediaBrowser auth header.
	Version string
	// Timeout bounds each HTTP attempt. Zero means 10 seconds.
	Timeout time.Duration
	// RetryMax is the number of retries for transport errors and 5xx answers.
	RetryMax int
}

// Client talks to a single Jellyfin server.
type Client struct {
	baseURL string
	opts    Options
	http    *retryablehttp.Client

	// mu protects working.
	mu sync.Mutex
	// working is the variant that last succeeded, tried first next time.
	working *variant
}

// NewClient creates a client for the server described by opts.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	hc := retryablehttp.NewClient()
	hc.RetryMax = opts.RetryMax
	hc.RetryWaitMin = 500 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.HTTPClient.Timeout = opts.Timeout
	hc.Logger = slog.Default().With("component", "jellyfin")

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		opts:    opts,
		http:    hc,
	}
}

// BaseURL returns the normalized server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// ListSessions returns every active session on the server, in server order.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.getJSON(ctx, "/Sessions", &sessions); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListUsers returns every user account visible to the API key.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.getJSON(ctx, "/Users", &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ImageURL returns a direct link to an item's image of the given type. The
// URL embeds the API key because the presence surface fetches it anonymously.
func (c *Client) ImageURL(itemID, imageType string) string {
	if itemID == "" {
		return ""
	}
	if imageType == "" {
		imageType = ImagePrimary
	}
	q := url.Values{}
	q.Set("api_key", c.opts.APIKey)
	q.Set("maxWidth", fmt.Sprint(imageMaxWidth))
	return c.baseURL + "/Items/" + url.PathEscape(itemID) + "/Images/" + url.PathEscape(imageType) + "?" + q.Encode()
}

// ///////////////////////////////////////////////
// Request Plumbing
// ///////////////////////////////////////////////

// statusError records a non-200 answer.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.url, e.code)
}

// candidates returns the variants to try, the last working one first.
func (c *Client) candidates() []variant {
	c.mu.Lock()
	working := c.working
	c.mu.Unlock()

	out := make([]variant, 0, len(prefixes)*len(authStyles)+1)
	if working != nil {
		out = append(out, *working)
	}
	for _, p := range prefixes {
		for _, a := range authStyles {
			v := variant{prefix: p, auth: a}
			if working != nil && v == *working {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

// getJSON performs a GET against path, decoding the JSON body into dst. A
// transport failure or 5xx answer aborts immediately since another header
// shape will not help; 4xx answers move on to the next variant.
func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	var lastErr error
	for _, v := range c.candidates() {
		body, err := c.get(ctx, v, path)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
				lastErr = err
				continue
			}
			return err
		}
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("parsing %s response: %w", path, err)
		}
		c.mu.Lock()
		c.working = &v
		c.mu.Unlock()
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRejected, lastErr)
}

// get issues one GET request using variant v.
func (c *Client) get(ctx context.Context, v variant, path string) ([]byte, error) {
	u := c.baseURL + v.prefix + path

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", u, err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req.Header, v.auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{url: u, code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", u, err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", u, maxResponseBytes)
	}
	return body, nil
}

// authorize sets the auth headers for style.
func (c *Client) authorize(h http.Header, style authStyle) {
	key := c.opts.APIKey
	switch style {
	case authMediaBrowser:
		h.Set("X-Emby-Authorization", fmt.Sprintf(
			`MediaBrowser Client="%s", Device="PC", DeviceId="%s", Version="%s", Token="%s"`,
			clientName, c.opts.DeviceID, c.opts.Version, key,
		))
	case authBearerLike:
		h.Set("Authorization", fmt.Sprintf(`MediaBrowser Token="%s"`, key))
	}
	h.Set("X-Emby-Token", key)
}
