package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

// maxRobotsSize caps how much of a robots.txt body is read.
const maxRobotsSize = 512 * 1024

// Policy answers allow/disallow queries for one origin.
// A Policy is immutable once built and safe for concurrent use.
type Policy struct {
	// data is the parsed rule set. nil means allow everything.
	data *robotstxt.RobotsData

	// unavailable is true when robots.txt could not be read and the
	// policy fell back to allow-all.
	unavailable bool

	// note explains why the policy is unavailable.
	note string
}

// AllowAll returns a policy that allows every URL.
func AllowAll() *Policy {
	return &Policy{}
}

// Parse builds a policy from the raw text of a robots.txt file.
func Parse(body []byte) (*Policy, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}
	return &Policy{data: data}, nil
}

// unavailablePolicy is the fail-open policy used when robots.txt cannot be read.
func unavailablePolicy(format string, args ...any) *Policy {
	return &Policy{
		unavailable: true,
		note:        fmt.Sprintf(format, args...),
	}
}

// Fetch retrieves {origin}/robots.txt once and builds the policy for it.
//
// Fetch never fails. A 4xx response means there is no robots.txt, which
// allows everything. A 5xx response, a network error, or a body that cannot
// be parsed also allows everything, but the returned policy reports itself
// as Unavailable with a note for the run summary.
func Fetch(ctx context.Context, client *http.Client, origin, userAgent string) *Policy {
	robotsURL := strings.TrimSuffix(origin, "/") + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return unavailablePolicy("robots.txt request for %s could not be built: %v", origin, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "text/plain,*/*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return unavailablePolicy("robots.txt at %s unreachable: %v", robotsURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
		if err != nil {
			return unavailablePolicy("robots.txt at %s could not be read: %v", robotsURL, err)
		}
		policy, err := Parse(body)
		if err != nil {
			return unavailablePolicy("robots.txt at %s is malformed: %v", robotsURL, err)
		}
		return policy
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return AllowAll()
	default:
		return unavailablePolicy("robots.txt at %s returned HTTP %d", robotsURL, resp.StatusCode)
	}
}

// IsAllowed reports whether userAgent may fetch rawURL.
//
// The most specific group for the agent is used (longest agent-name prefix,
// falling back to "*"), and within it the longest matching rule decides.
// A URL that cannot be parsed is disallowed.
//
// The query takes part in matching. The crawler only ever requests
// normalized URLs, which have none, so rules naming a query never block a
// crawl request.
func (p *Policy) IsAllowed(rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if p.data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return p.data.FindGroup(userAgent).Test(path)
}

// CrawlDelay returns the Crawl-delay of the group that applies to
// userAgent, or zero when none is set.
func (p *Policy) CrawlDelay(userAgent string) time.Duration {
	if p.data == nil {
		return 0
	}
	return p.data.FindGroup(userAgent).CrawlDelay
}

// Unavailable reports whether robots.txt could not be read and the policy
// fell back to allowing everything.
func (p *Policy) Unavailable() bool {
	return p.unavailable
}

// Note returns the reason the policy is unavailable, or an empty string.
func (p *Policy) Note() string {
	return p.note
}
