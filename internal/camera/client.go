package camera

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
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrStatus is wrapped by errors for non-2xx backend responses.
	ErrStatus = errors.New("unexpected backend status")
	// ErrTooLarge is wrapped when a response body exceeds its size limit.
	ErrTooLarge = errors.New("backend response too large")
)

const maxImageBytes = 8 << 20

// ClientOptions tunes the backend client.
type ClientOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// DefaultClientOptions mirrors the small load budget used for manifests.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		RetryMax:     2,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Timeout:      10 * time.Second,
	}
}

// Client talks to the camera backend: the camera list, thumbnails and the
// stream URL layout.
type Client struct {
	base *url.URL
	http *retryablehttp.Client
	log  *slog.Logger
}

// NewClient returns a Client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ClientOptions, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	hc := retryablehttp.NewClient()
	hc.RetryMax = opts.RetryMax
	hc.RetryWaitMin = opts.RetryWaitMin
	hc.RetryWaitMax = opts.RetryWaitMax
	hc.HTTPClient.Timeout = opts.Timeout
	hc.Logger = nil

	return &Client{base: u, http: hc, log: log}, nil
}

// List fetches GET /cameras. The response may be a bare array or an object
// with a "cameras" array. The result is normalized.
func (c *Client) List(ctx context.Context) ([]Descriptor, error) {
	body, _, err := c.get(ctx, c.resolve("/cameras"), 1<<20)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}

	var list []Descriptor
	if err := json.Unmarshal(body, &list); err != nil {
		var wrapped struct {
			Cameras []Descriptor `json:"cameras"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode camera list: %w", err)
		}
		list = wrapped.Cameras
	}
	return Normalize(list), nil
}

// StreamURL returns the absolute manifest URL for d.
func (c *Client) StreamURL(d Descriptor) string {
	return c.resolve(d.StreamPath())
}

// ThumbnailURL returns the poster URL for cameraID with a cache-busting query.
func (c *Client) ThumbnailURL(cameraID, bust string) string {
	u := c.resolve("/thumbnail/" + url.PathEscape(cameraID))
	if bust == "" {
		return u
	}
	return u + "?t=" + url.QueryEscape(bust)
}

// FetchImage downloads an image and returns its bytes and content type.
func (c *Client) FetchImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	body, ct, err := c.get(ctx, rawURL, maxImageBytes)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	return body, ct, nil
}

func (c *Client) resolve(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return strings.TrimSuffix(c.base.String(), "/") + "/" + strings.TrimPrefix(p, "/")
}

func (c *Client) get(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("%w: %s returned %d", ErrStatus, rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("%w: %s over %d bytes", ErrTooLarge, rawURL, limit)
	}
	c.log.Debug("backend fetch", slog.String("url", rawURL), slog.Int("bytes", len(body)))
	return body, resp.Header.Get("Content-Type"), nil
}
