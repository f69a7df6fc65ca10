// Package reddit fetches the current reply set of a monitored thread via the
// platform's public JSON endpoint.
package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

const BaseURL = "https://www.reddit.com"

// DefaultUserAgent mimics a desktop browser; the platform 403s default
// automation signatures.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Reply is one comment of a monitored thread. It is rebuilt on every fetch;
// only its ID outlives the scan pass that saw it.
type Reply struct {
	ID        string
	Author    string
	Body      string
	Permalink string
	Created   time.Time
}

// URL returns the comment's full address.
func (r Reply) URL() string { return BaseURL + r.Permalink }

type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	userAgent  string
}

// NewClient returns a fetcher. proxyURL optionally routes thread requests
// through an HTTP proxy; empty means direct.
func NewClient(proxyURL string) (*Client, error) {
	tr := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL = strings.TrimSpace(proxyURL); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("proxy url parse %q: %w", proxyURL, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy url must include scheme and host, got %q", proxyURL)
		}
		tr.Proxy = http.ProxyURL(u)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: tr,
		},
		transport: tr,
		userAgent: DefaultUserAgent,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	if c != nil && c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

// Comments fetches and flattens the thread's reply tree, newest first.
// Comments with no id or a deleted author are dropped.
func (c *Client) Comments(ctx context.Context, threadURL string) ([]Reply, error) {
	if c == nil {
		return nil, fmt.Errorf("reddit client nil")
	}
	normalized, err := NormalizeThreadURL(threadURL)
	if err != nil {
		return nil, err
	}
	endpoint := normalized + ".json?sort=new"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyLimit(resp.Body, 8<<10)
		return nil, fmt.Errorf("thread %s: status=%d body=%q", normalized, resp.StatusCode, body)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	root, err := decodeThread(b)
	if err != nil {
		return nil, fmt.Errorf("thread %s: %w", normalized, err)
	}

	var replies []Reply
	flattenTree(root, 0, &replies)
	sort.Slice(replies, func(i, j int) bool {
		return replies[i].Created.After(replies[j].Created)
	})
	return replies, nil
}

// NormalizeThreadURL strips the query string, fragment and trailing slash so
// the same thread always maps to the same endpoint.
func NormalizeThreadURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("thread url required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("thread url parse %q: %w", raw, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("thread url must be http(s), got %q", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

var (
	threadURLRe = regexp.MustCompile(`^https?://(www\.|old\.)?reddit\.com/r/\w+/comments/\w+`)
	postIDRe    = regexp.MustCompile(`/comments/([a-zA-Z0-9]+)`)
	subredditRe = regexp.MustCompile(`/r/([^/]+)/`)
)

// ValidThreadURL reports whether s looks like a thread link worth monitoring.
func ValidThreadURL(s string) bool {
	return threadURLRe.MatchString(strings.TrimSpace(s))
}

// PostID extracts the thread id from a thread or comment URL. It falls back
// to the URL tail so button labels always have something to show.
func PostID(s string) string {
	if m := postIDRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if len(s) > 10 {
		return s[len(s)-10:]
	}
	return s
}

// Subreddit extracts the community name from a thread URL, or "unknown".
func Subreddit(s string) string {
	if m := subredditRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return "unknown"
}

// IsCommentURL reports whether a pasted link points at a single comment
// rather than a whole thread.
func IsCommentURL(s string) bool {
	s = strings.TrimSpace(s)
	if !ValidThreadURL(s) {
		return false
	}
	return CommentID(s) != ""
}

// CommentID extracts the comment id from a comment permalink, which has the
// shape /r/<sub>/comments/<post>/<title>/<comment>. Returns "" for thread
// links.
func CommentID(s string) string {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 6 && parts[0] == "r" && parts[2] == "comments" {
		return parts[5]
	}
	return ""
}

func readBodyLimit(r io.Reader, max int64) string {
	if r == nil || max <= 0 {
		return ""
	}
	lr := &io.LimitedReader{R: r, N: max}
	b, _ := io.ReadAll(lr)
	return strings.TrimSpace(string(b))
}
