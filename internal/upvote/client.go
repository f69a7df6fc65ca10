// Package upvote is the client for the ordering service's query API. The
// service sits behind a bot-mitigation layer that intermittently serves
// challenge pages instead of data, so every call classifies the raw response
// and retries once after a detected block.
package upvote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://upvote.biz"
	apiPath        = "/api/v1"

	// The service refuses smaller orders.
	MinQuantity = 3

	maxAttempts = 2
)

// DefaultUserAgent mimics a desktop browser; the mitigation layer 403s
// default client signatures.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Client struct {
	base      string
	key       string
	userAgent string

	httpClient *http.Client
	transport  *http.Transport

	mu     sync.Mutex
	warmed bool

	// Pause between a detected block and the re-warmed retry.
	blockDelay time.Duration
}

// NewClient returns a gateway for the service at base, authenticating every
// call with key as a query parameter.
func NewClient(base, key string) (*Client, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("api url parse %q: %w", base, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("api url must be http(s), got %q", base)
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("api key required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	tr := &http.Transport{Proxy: http.ProxyFromEnvironment}

	return &Client{
		base:      base,
		key:       strings.TrimSpace(key),
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Jar:       jar,
			Transport: tr,
		},
		transport:  tr,
		blockDelay: 3 * time.Second,
	}, nil
}

// Close releases the client's connections. Safe to call on any termination
// path.
func (c *Client) Close() {
	if c != nil && c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

// Reset forgets the warm-up state and session cookies so the next call
// starts with a fresh warm-up visit.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warmed = false
	if jar, err := cookiejar.New(nil); err == nil {
		c.httpClient.Jar = jar
	}
}

// ensureWarm visits the base domain once per session so the mitigation layer
// can hand out its cookies before the first API call. Best effort: its own
// failure is tolerated and not retried.
func (c *Client) ensureWarm(ctx context.Context) {
	c.mu.Lock()
	warmed := c.warmed
	c.mu.Unlock()
	if warmed {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/", nil)
	if err == nil {
		c.setHeaders(req, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if resp, err := c.httpClient.Do(req); err == nil {
			io.CopyN(io.Discard, resp.Body, 64<<10)
			resp.Body.Close()
		}
	}

	c.mu.Lock()
	c.warmed = true
	c.mu.Unlock()
}

func (c *Client) setHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

// call runs one logical API operation: warm up if needed, perform the
// request, classify the response. A block triggers one reset-and-retry; a
// transport error gets one more try; rejections surface immediately.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("key", c.key)
	endpoint := c.base + apiPath + "?" + params.Encode()

	var lastErr *APIError
	gotResponse := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &APIError{Kind: KindTransport, Msg: ctx.Err().Error()}
			case <-time.After(c.blockDelay):
			}
		}
		c.ensureWarm(ctx)

		apiErr := c.once(ctx, endpoint, out)
		if apiErr == nil {
			return nil
		}
		lastErr = apiErr

		switch apiErr.Kind {
		case KindBlock:
			gotResponse = true
			c.Reset()
		case KindTransport:
			// Retry without resetting the session.
		default:
			return apiErr
		}
	}

	if !gotResponse {
		return &APIError{Kind: KindNoResponse, Msg: "no response from ordering service: " + lastErr.Msg}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, endpoint string, out any) *APIError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &APIError{Kind: KindTransport, Msg: err.Error()}
	}
	c.setHeaders(req, "application/json, text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransport, Msg: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return &APIError{Kind: KindTransport, Msg: "read body: " + err.Error()}
	}

	cls := Classify(resp.StatusCode, resp.Header, body)
	switch cls.Kind {
	case KindOK:
		if msg := errorField(cls.Payload); msg != "" {
			return &APIError{Kind: KindRejection, Msg: msg}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{
				Kind: KindRejection,
				Msg:  fmt.Sprintf("status %d", resp.StatusCode),
				Body: safeBodyPrefix(cls.Payload, 500),
			}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(cls.Payload, out); err != nil {
			return &APIError{
				Kind: KindRejection,
				Msg:  "unexpected payload shape: " + err.Error(),
				Body: safeBodyPrefix(cls.Payload, 500),
			}
		}
		return nil
	case KindBlock:
		return &APIError{
			Kind: KindBlock,
			Msg:  "blocked by bot mitigation (" + cls.Note + ")",
			Body: safeBodyPrefix(body, 200),
		}
	default:
		return &APIError{
			Kind: KindRejection,
			Msg:  cls.Note,
			Body: safeBodyPrefix(body, 500),
		}
	}
}

// Number decodes panel values that arrive either as JSON numbers or quoted
// strings.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(s))
		return nil
	}
	*n = Number(string(b))
	return nil
}

func (n Number) String() string { return string(n) }

func (n Number) Int64() int64 {
	v, _ := strconv.ParseInt(string(n), 10, 64)
	return v
}

type Balance struct {
	Balance  Number `json:"balance"`
	Currency string `json:"currency"`
}

// GetBalance looks up the account's remaining credit.
func (c *Client) GetBalance(ctx context.Context) (Balance, error) {
	params := url.Values{}
	params.Set("action", "balance")

	var b Balance
	if err := c.call(ctx, params, &b); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Service is one catalog row.
type Service struct {
	ID       Number `json:"service"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Rate     Number `json:"rate"`
	Min      Number `json:"min"`
	Max      Number `json:"max"`
}

// Services fetches the catalog.
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	params := url.Values{}
	params.Set("action", "services")

	var list []Service
	if err := c.call(ctx, params, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddOrder submits an order of quantity actions against link. Quantities
// under the service minimum are silently floored to it.
func (c *Client) AddOrder(ctx context.Context, serviceID int, link string, quantity int) (int64, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return 0, fmt.Errorf("order link required")
	}
	if quantity < MinQuantity {
		quantity = MinQuantity
	}

	params := url.Values{}
	params.Set("action", "add")
	params.Set("service", strconv.Itoa(serviceID))
	params.Set("link", link)
	params.Set("quantity", strconv.Itoa(quantity))

	var resp struct {
		Order Number `json:"order"`
	}
	if err := c.call(ctx, params, &resp); err != nil {
		return 0, err
	}
	id := resp.Order.Int64()
	if id == 0 {
		return 0, &APIError{Kind: KindRejection, Msg: "response missing order id"}
	}
	return id, nil
}

// OrderStatus is the service's view of one submitted order. Error is set for
// per-order failures in a multi-status response.
type OrderStatus struct {
	Charge     Number `json:"charge"`
	StartCount Number `json:"start_count"`
	Status     string `json:"status"`
	Remains    Number `json:"remains"`
	Currency   string `json:"currency"`
	Error      string `json:"error"`
}

// GetOrderStatus looks up a single order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID int64) (OrderStatus, error) {
	params := url.Values{}
	params.Set("action", "status")
	params.Set("order", strconv.FormatInt(orderID, 10))

	var st OrderStatus
	if err := c.call(ctx, params, &st); err != nil {
		return OrderStatus{}, err
	}
	return st, nil
}

// GetMultiStatus looks up several orders at once, keyed by order id.
func (c *Client) GetMultiStatus(ctx context.Context, orderIDs []int64) (map[string]OrderStatus, error) {
	if len(orderIDs) == 0 {
		return map[string]OrderStatus{}, nil
	}
	parts := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		parts = append(parts, strconv.FormatInt(id, 10))
	}

	params := url.Values{}
	params.Set("action", "status")
	params.Set("orders", strings.Join(parts, ","))

	statuses := make(map[string]OrderStatus)
	if err := c.call(ctx, params, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}
