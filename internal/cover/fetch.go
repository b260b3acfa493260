package cover

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	_ "golang.org/x/image/webp"

	"github.com/pders01/analog/internal/debuglog"
	"github.com/pders01/analog/internal/validation"
)

const maxImageBytes = 10 << 20

// ErrNoColor is returned when an image has no opaque pixels.
var ErrNoColor = errors.New("cover: no dominant colour")

// Fetcher downloads cover art and remembers the colour derived per URL.
type Fetcher struct {
	client    *retryablehttp.Client
	validator *validation.URLValidator
	extractor Extractor
	userAgent string

	mu     sync.Mutex
	colors map[string]Color
}

func NewFetcher(timeout time.Duration, userAgent string, validator *validation.URLValidator) *Fetcher {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &Fetcher{
		client:    rc,
		validator: validator,
		extractor: NewExtractor(),
		userAgent: userAgent,
		colors:    make(map[string]Color),
	}
}

// WithExtractor swaps the colour strategy.
func (f *Fetcher) WithExtractor(e Extractor) *Fetcher {
	f.extractor = e
	return f
}

// Image downloads and decodes a JPEG, PNG, GIF or WebP image.
func (f *Fetcher) Image(ctx context.Context, rawURL string) (image.Image, error) {
	target, err := f.validator.ValidateAndNormalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cover URL: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/webp,image/jpeg,image/png,image/gif")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	img, format, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decoding cover: %w", err)
	}
	debuglog.Debugf("cover: decoded %s %v from %s", format, img.Bounds().Size(), target)
	return img, nil
}

// Color returns the dominant colour of the cover at rawURL, downloading it
// at most once per URL per session.
func (f *Fetcher) Color(ctx context.Context, rawURL string) (Color, error) {
	f.mu.Lock()
	c, ok := f.colors[rawURL]
	f.mu.Unlock()
	if ok {
		return c, nil
	}

	img, err := f.Image(ctx, rawURL)
	if err != nil {
		return Color{}, err
	}
	c, ok = f.extractor.DominantColor(img)
	if !ok {
		return Color{}, ErrNoColor
	}

	f.mu.Lock()
	f.colors[rawURL] = c
	f.mu.Unlock()
	return c, nil
}
