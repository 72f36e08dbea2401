package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is where the backend listens when run locally.
const DefaultBaseURL = "http://127.0.0.1:8000"

// maxBodySize caps how much of any response body is read.
const maxBodySize = 10 << 20

// Client talks to one backend instance. Safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter // throttles /search only
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSearchLimiter replaces the /search rate limiter. nil disables limiting.
func WithSearchLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New creates a Client for the backend at baseURL.
// No client-wide timeout is set: uploads can be large, so callers bound each
// call with their context.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: base URL %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		base:    u,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// resolve resolves ref against the base address. Absolute refs pass through.
func (c *Client) resolve(ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		r = &url.URL{Path: ref}
	}
	if !r.IsAbs() {
		r.Path = strings.TrimPrefix(r.Path, "/")
	}
	return c.base.ResolveReference(r).String()
}

// Status fetches the backend's indexing status.
func (c *Client) Status(ctx context.Context) (StatusReport, error) {
	var rep StatusReport
	body, err := c.do(ctx, "status", http.MethodGet, c.resolve("status"), nil, "")
	if err != nil {
		return rep, err
	}
	if err := json.Unmarshal(body, &rep); err != nil {
		return rep, fmt.Errorf("backend: status: failed to parse response: %w", err)
	}
	return rep, nil
}

// Upload streams req as multipart/form-data to /upload. Success only means
// the backend accepted the file; indexing progress is observed via Status.
func (c *Client) Upload(ctx context.Context, req UploadRequest) error {
	if req.Body == nil {
		return errors.New("backend: upload: nil body")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := writeUploadForm(mw, req)
		pw.CloseWithError(err)
		if errors.Is(err, io.ErrClosedPipe) {
			// The request side finished first; its outcome decides.
			return nil
		}
		return err
	})

	var respErr error
	g.Go(func() error {
		_, respErr = c.do(gctx, "upload", http.MethodPost, c.resolve("upload"), pr, mw.FormDataContentType())
		pr.Close()
		return respErr
	})

	werr := g.Wait()
	if respErr != nil {
		return respErr
	}
	if werr != nil {
		return fmt.Errorf("backend: upload: failed to encode form: %w", werr)
	}
	return nil
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest) error {
	part, err := mw.CreateFormFile("file", filepath.Base(req.Filename))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, req.Body); err != nil {
		return err
	}
	interval := strconv.FormatFloat(req.FrameInterval, 'f', -1, 64)
	if err := mw.WriteField("frame_interval", interval); err != nil {
		return err
	}
	return mw.Close()
}

// resetResponse is the body of POST /reset. The backend answers 200 even when
// the reset failed, flagging it with status "error".
type resetResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Reset asks the backend to drop its index.
func (c *Client) Reset(ctx context.Context) error {
	body, err := c.do(ctx, "reset", http.MethodPost, c.resolve("reset"), nil, "")
	if err != nil {
		return err
	}
	var rr resetResponse
	if len(body) > 0 && json.Unmarshal(body, &rr) == nil && rr.Status == "error" {
		return fmt.Errorf("%w: %s", ErrResetRejected, rr.Detail)
	}
	return nil
}

// Search issues a weighted query. Weights are sent verbatim; the backend does
// all scoring. Results keep backend order.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("backend: search: rate limiter wait failed: %w", err)
		}
	}

	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("visual_weight", strconv.FormatFloat(q.VisualWeight, 'f', -1, 64))
	params.Set("text_weight", strconv.FormatFloat(q.TextWeight, 'f', -1, 64))

	body, err := c.do(ctx, "search", http.MethodGet, c.resolve("search")+"?"+params.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	var results []SearchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("backend: search: failed to parse response: %w", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// PreviewURL resolves a result's preview_path against the base address.
func (c *Client) PreviewURL(previewPath string) string {
	return c.resolve(previewPath)
}

// FetchPreview downloads a preview image.
func (c *Client) FetchPreview(ctx context.Context, previewPath string) ([]byte, error) {
	return c.do(ctx, "preview", http.MethodGet, c.PreviewURL(previewPath), nil, "")
}

// do executes one request and returns the (size-capped) body of a 2xx
// response.
func (c *Client) do(ctx context.Context, op, method, target string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("backend: %s: failed to create request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("backend: %s: request cancelled: %w", op, ctx.Err())
		}
		return nil, fmt.Errorf("backend: %s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("backend: %s: failed to read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: truncate(string(data), 200)}
	}
	return data, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
