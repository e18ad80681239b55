package crawler

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrMissingHost is returned for URLs without a host.
	ErrMissingHost = errors.New("URL has no host")
)

// defaultPorts maps schemes to the port that is dropped during normalization.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize returns the canonical form of an absolute http(s) URL used for
// de-duplication.
//
// Normalization rules:
//  1. Scheme and host are lower-cased, and the scheme's default port is removed
//  2. User info, query and fragment are dropped
//  3. An empty path becomes "/"
//  4. A trailing slash is removed, except for the root path
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if _, ok := defaultPorts[u.Scheme]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, rawURL)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingHost, rawURL)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" || port == defaultPorts[u.Scheme] {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	} else {
		u.Host = net.JoinHostPort(host, port)
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.ForceQuery = false

	u.Path = trimPath(u.Path)
	if u.RawPath != "" {
		u.RawPath = trimPath(u.RawPath)
	}

	return u.String(), nil
}

func trimPath(path string) string {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	return path
}

// NormalizeSeed normalizes a user-supplied seed. A seed without a scheme is
// assumed to be https.
func NormalizeSeed(seed string) (string, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return "", fmt.Errorf("%w: empty seed", ErrMissingHost)
	}
	if !strings.Contains(seed, "://") {
		seed = "https://" + seed
	}
	return Normalize(seed)
}

// Origin returns scheme://host[:port] of a normalized URL.
func Origin(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// SameOrigin reports whether two normalized URLs share scheme, host and port.
func SameOrigin(a, b string) bool {
	oa := Origin(a)
	return oa != "" && oa == Origin(b)
}
