// Package discogs is a thin read-only client for the parts of the Discogs
// API analog needs: the collection listing, folders and artist profiles.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/pders01/analog/internal/config"
	"github.com/pders01/analog/internal/debuglog"
)

const releaseURLBase = "https://www.discogs.com/release/"

type Client struct {
	baseURL   string
	token     string
	username  string
	userAgent string
	perPage   int
	http      *retryablehttp.Client
}

func NewClient(cfg *config.Config) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Discogs.RetryMax
	rc.HTTPClient.Timeout = cfg.Discogs.HTTPTimeout
	rc.Logger = retryLogger{}
	// Hand the final response back so non-2xx becomes a StatusError
	// instead of the library's "giving up" error.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	perPage := cfg.Discogs.PerPage
	if perPage <= 0 {
		perPage = 100
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.Discogs.BaseURL, "/"),
		token:     strings.TrimSpace(cfg.Discogs.Token),
		username:  strings.TrimSpace(cfg.Discogs.Username),
		userAgent: cfg.Discogs.UserAgent,
		perPage:   perPage,
		http:      rc,
	}
}

// HasCredentials reports whether both token and username are present.
func (c *Client) HasCredentials() bool {
	return c.token != "" && c.username != ""
}

// CollectionPage fetches one page of folder 0 (the whole collection).
func (c *Client) CollectionPage(ctx context.Context, page int) (*CollectionPage, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.perPage))
	endpoint := fmt.Sprintf("%s/users/%s/collection/folders/0/releases?%s",
		c.baseURL, url.PathEscape(c.username), q.Encode())

	var out CollectionPage
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Folders lists the user's collection folders.
func (c *Client) Folders(ctx context.Context) ([]Folder, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	endpoint := fmt.Sprintf("%s/users/%s/collection/folders", c.baseURL, url.PathEscape(c.username))
	var out foldersResponse
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Folders, nil
}

// Artist fetches an artist profile.
func (c *Client) Artist(ctx context.Context, id int64) (*Artist, error) {
	if c.token == "" {
		return nil, ErrMissingCredentials
	}
	if id <= 0 {
		return nil, fmt.Errorf("invalid artist id %d", id)
	}

	endpoint := fmt.Sprintf("%s/artists/%d", c.baseURL, id)
	var out Artist
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReleaseURL is the public web page of a release.
func ReleaseURL(id int64) string {
	return releaseURLBase + strconv.FormatInt(id, 10)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, into any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Discogs token="+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", redact(endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, URL: redact(endpoint)}
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// redact drops the query string so page numbers don't bloat the logs.
func redact(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

// retryLogger routes retryablehttp's leveled output into debuglog.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...interface{}) { debuglog.Errorf("%s %v", msg, kv) }
func (retryLogger) Info(msg string, kv ...interface{})  { debuglog.Debugf("%s %v", msg, kv) }
func (retryLogger) Debug(msg string, kv ...interface{}) { debuglog.Debugf("%s %v", msg, kv) }
func (retryLogger) Warn(msg string, kv ...interface{})  { debuglog.Warnf("%s %v", msg, kv) }
