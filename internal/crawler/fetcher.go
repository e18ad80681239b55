package crawler

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/headingscan/internal/model"
)

// Fetcher retrieves a page and extracts its headings and links.
// The Spider treats every error from Fetch as a per-page failure.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*PageContent, error)
}

// PageContent is what a successful fetch yields.
type PageContent struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects. Links are resolved against it.
	FinalURL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the media type of the body.
	ContentType string

	// Title is the page title.
	Title string

	// Headings are the page's headings in document order.
	Headings []model.HeadingEvent

	// Links are absolute outbound http(s) links in document order.
	Links []string

	// ContentHash is the SHA3-256 hex digest of the body.
	ContentHash string
}

// FetchErrorKind classifies a failed fetch.
type FetchErrorKind string

const (
	// FetchErrorUnreachable covers DNS, connection and TLS failures.
	FetchErrorUnreachable FetchErrorKind = "unreachable"

	// FetchErrorNonHTML is a response whose body is not HTML.
	FetchErrorNonHTML FetchErrorKind = "non_html_content"

	// FetchErrorTimeout is a request that exceeded its deadline.
	FetchErrorTimeout FetchErrorKind = "timeout"

	// FetchErrorHTTPStatus is a response with status 400 or above.
	FetchErrorHTTPStatus FetchErrorKind = "http_status"

	// FetchErrorOffOrigin is a redirect to another scheme, host or port.
	// The redirect is not followed.
	FetchErrorOffOrigin FetchErrorKind = "off_origin_redirect"

	// FetchErrorDisallowedRedirect is a redirect to a URL the crawl must
	// not fetch, e.g. one robots.txt disallows. It is not followed.
	FetchErrorDisallowedRedirect FetchErrorKind = "disallowed_redirect"
)

type redirectCheckKey struct{}

// withRedirectCheck attaches check to ctx. HTTPFetcher calls it with the
// normalized URL of every redirect hop before following it.
func withRedirectCheck(ctx context.Context, check func(normalized string) error) context.Context {
	return context.WithValue(ctx, redirectCheckKey{}, check)
}

func redirectCheckFrom(ctx context.Context) func(string) error {
	check, _ := ctx.Value(redirectCheckKey{}).(func(string) error)
	return check
}

// maxRedirects matches the limit of net/http's default redirect policy.
const maxRedirects = 10

// FetchError describes why a page could not be fetched.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchErrorHTTPStatus:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
		}
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPFetcher is the net/http implementation of Fetcher.
type HTTPFetcher struct {
	// client performs the page requests. It is a copy of base that refuses
	// redirects leaving the requested origin.
	client *http.Client

	// base is the client as given, used for robots.txt.
	base *http.Client

	// userAgent is the User-Agent header to use.
	userAgent string

	// headers are extra request headers, e.g. from the site config.
	headers map[string]string

	// cookie is sent as the Cookie header when set.
	cookie string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	logger *slog.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithFetcherUserAgent sets the User-Agent header.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.headers = headers
	}
}

// WithCookie sets the Cookie header sent with every request.
func WithCookie(cookie string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.cookie = cookie
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxBodySize = size
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// DefaultUserAgent identifies headingscan to the sites it crawls.
const DefaultUserAgent = "headingscan/1.0 (+https://github.com/nao1215/headingscan)"

// NewHTTPFetcher creates a fetcher using client. A nil client gets a
// default client with a 10 second timeout.
//
// Page requests follow redirects only within the origin of the requested
// URL; client itself is not modified.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	f := &HTTPFetcher{
		client:      sameOriginClient(client),
		base:        client,
		userAgent:   DefaultUserAgent,
		headers:     make(map[string]string),
		maxBodySize: 10 * 1024 * 1024, // 10MB
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the client given to NewHTTPFetcher, shared with the
// robots fetch.
func (f *HTTPFetcher) Client() *http.Client {
	return f.base
}

// sameOriginClient returns a copy of client whose redirect policy rejects
// any hop to an origin other than that of the first request. The original
// policy, or the default limit of maxRedirects, still applies to the rest.
func sameOriginClient(client *http.Client) *http.Client {
	c := *client
	next := client.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		from := via[0].URL
		if !sameOriginURL(from, req.URL) {
			return &FetchError{
				Kind: FetchErrorOffOrigin,
				URL:  from.String(),
				Err:  fmt.Errorf("redirected to %s", req.URL.Redacted()),
			}
		}
		if check := redirectCheckFrom(req.Context()); check != nil {
			if normalized, err := Normalize(req.URL.String()); err == nil {
				if err := check(normalized); err != nil {
					return err
				}
			}
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	return &c
}

// sameOriginURL compares origins after normalization, so an explicit
// default port matches its absence.
func sameOriginURL(a, b *url.URL) bool {
	na, errA := Normalize(a.String())
	nb, errB := Normalize(b.String())
	return errA == nil && errB == nil && SameOrigin(na, nb)
}

// Fetch retrieves target and extracts headings and links.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string) (*PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchErrorUnreachable, URL: target, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, fetchErr
		}
		return nil, classifyTransportError(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Kind: FetchErrorHTTPStatus, URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, classifyTransportError(target, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if !isHTML(contentType) {
		return nil, &FetchError{
			Kind:       FetchErrorNonHTML,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("content type %q", contentType),
		}
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	parser, err := NewParser(finalURL)
	if err != nil {
		return nil, &FetchError{Kind: FetchErrorUnreachable, URL: target, Err: err}
	}

	var reader io.Reader = bytes.NewReader(body)
	if decoded, err := charset.NewReader(reader, contentType); err == nil {
		reader = decoded
	} else {
		f.logger.Debug("charset detection failed, parsing raw bytes", "url", target, "error", err)
		reader = bytes.NewReader(body)
	}

	parsed, err := parser.Parse(reader)
	if err != nil {
		return nil, &FetchError{Kind: FetchErrorNonHTML, URL: target, StatusCode: resp.StatusCode, Err: err}
	}

	hash := sha3.Sum256(body)

	return &PageContent{
		URL:         target,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Title:       parsed.Title,
		Headings:    parsed.Headings,
		Links:       parsed.Links,
		ContentHash: hex.EncodeToString(hash[:]),
	}, nil
}

// isHTML reports whether a Content-Type value denotes an HTML document.
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// classifyTransportError maps a client error to a FetchError.
func classifyTransportError(target string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: FetchErrorTimeout, URL: target, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: FetchErrorTimeout, URL: target, Err: err}
	}
	return &FetchError{Kind: FetchErrorUnreachable, URL: target, Err: err}
}
