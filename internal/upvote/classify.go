package upvote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Kind tags the outcome of a gateway call. Failures are returned as values;
// the scan loop never has to recover from a thrown fault.
type Kind string

const (
	// KindOK marks a response whose body held a parseable payload.
	KindOK Kind = "ok"
	// KindBlock marks a bot-mitigation challenge served instead of data.
	KindBlock Kind = "mitigation_block"
	// KindRejection marks a service-level error, surfaced verbatim.
	KindRejection Kind = "upstream_rejection"
	// KindTransport marks timeouts, connection errors and the like.
	KindTransport Kind = "transport"
	// KindNoResponse marks both attempts ending without any response at all.
	KindNoResponse Kind = "no_response"
)

// APIError is the failure side of every gateway result. Msg is what the
// operator sees; Body keeps a trimmed payload prefix for diagnosis.
type APIError struct {
	Kind Kind
	Msg  string
	Body string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %s (body=%q)", e.Kind, e.Msg, e.Body)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Cause returns the operator-facing failure text of err. Service rejections
// come back verbatim, as the panel worded them.
func Cause(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Msg
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// FailureKind extracts the failure tag from a gateway error, or "" when err
// is not a gateway failure.
func FailureKind(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Classification is the verdict on one raw response.
type Classification struct {
	Kind    Kind
	Payload []byte // extracted JSON document when Kind == KindOK
	Note    string
}

var (
	preTagRe  = regexp.MustCompile(`(?is)<pre[^>]*>(.*?)</pre>`)
	bodyTagRe = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)
)

// Classify judges a raw ordering-service response: a parseable JSON payload
// (possibly wrapped in an HTML envelope), a mitigation challenge, or an
// unexpected shape. Service-level rejections ride inside KindOK payloads as
// an "error" field and are picked apart by the caller.
func Classify(status int, header http.Header, body []byte) Classification {
	trimmed := bytes.TrimSpace(body)

	if payload, ok := extractJSON(trimmed); ok {
		return Classification{Kind: KindOK, Payload: payload}
	}

	if looksHTML(trimmed, header.Get("Content-Type")) {
		if note, blocked := mitigationMarker(status, header, trimmed); blocked {
			return Classification{Kind: KindBlock, Note: note}
		}
		// An HTML page with no payload inside is an interstitial even
		// without a recognizable marker.
		return Classification{Kind: KindBlock, Note: fmt.Sprintf("html response (status %d)", status)}
	}

	return Classification{Kind: KindRejection, Note: fmt.Sprintf("unexpected response shape (status %d)", status)}
}

// extractJSON returns the JSON document in body, unwrapping the <pre> or
// <body> envelope the panel sometimes emits around it.
func extractJSON(body []byte) ([]byte, bool) {
	if isJSONStart(body) && json.Valid(body) {
		return body, true
	}
	for _, re := range []*regexp.Regexp{preTagRe, bodyTagRe} {
		if m := re.FindSubmatch(body); m != nil {
			inner := bytes.TrimSpace(m[1])
			if isJSONStart(inner) && json.Valid(inner) {
				return inner, true
			}
		}
	}
	return nil, false
}

func isJSONStart(b []byte) bool {
	return len(b) > 0 && (b[0] == '{' || b[0] == '[')
}

func looksHTML(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := bytes.ToLower(body)
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("<!doctype")) || bytes.HasPrefix(head, []byte("<html"))
}

func mitigationMarker(status int, header http.Header, body []byte) (string, bool) {
	prefix := body
	if len(prefix) > 16<<10 {
		prefix = prefix[:16<<10]
	}
	lower := strings.ToLower(string(prefix))

	if strings.Contains(lower, "just a moment") {
		return "challenge page", true
	}
	if strings.Contains(lower, "cloudflare") &&
		(strings.Contains(lower, "challenge") || strings.Contains(lower, "checking your browser")) {
		return "cloudflare challenge", true
	}
	if header.Get("Cf-Mitigated") != "" {
		return "cf-mitigated header", true
	}
	if (status == http.StatusForbidden || status == http.StatusServiceUnavailable) &&
		strings.Contains(strings.ToLower(header.Get("Server")), "cloudflare") {
		return fmt.Sprintf("cloudflare status %d", status), true
	}
	return "", false
}

// errorField pulls the service-level error message out of a payload, if any.
func errorField(payload []byte) string {
	var probe struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || probe.Error == nil {
		return ""
	}
	switch v := probe.Error.(type) {
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func safeBodyPrefix(body []byte, max int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max]
	}
	return s
}
