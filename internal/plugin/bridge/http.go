package bridge

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sunstory/openusage/internal/metrics"
	"github.com/sunstory/openusage/internal/plugin/redact"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	bodyPreviewBytes   = 500
)

// httpDoer lets tests substitute a fake transport without standing up a
// real listener.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func defaultHTTPClient() httpDoer {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if os.Getenv("OPENUSAGE_DISABLE_SYSTEM_PROXY") == "1" {
		transport.Proxy = nil
	}
	return &http.Client{
		Timeout:   defaultHTTPTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// HTTPRequestOptions mirrors host.http.request's options object.
type HTTPRequestOptions struct {
	URL                  string
	Method               string
	Headers              map[string]string
	BodyText             string
	TimeoutMs            int
	DangerouslyIgnoreTLS bool
}

// HTTPResponse mirrors host.http.request's return value.
type HTTPResponse struct {
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	BodyText string            `json:"bodyText"`
}

// HTTPRequest implements host.http.request: a synchronous client with no
// automatic redirects, a default 10s timeout, and before/after logging that
// always passes through the Redactor (invariant 5).
func (b *Bridge) HTTPRequest(opts HTTPRequestOptions) (HTTPResponse, error) {
	metrics.BridgeCall(b.pluginID, "http.request")

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := defaultHTTPTimeout
	if opts.TimeoutMs > 0 {
		timeout = time.Duration(opts.TimeoutMs) * time.Millisecond
	}

	b.Log("info", fmt.Sprintf("%s %s", method, redact.URL(opts.URL)))

	var bodyReader io.Reader
	if opts.BodyText != "" {
		bodyReader = strings.NewReader(opts.BodyText)
	}
	req, err := http.NewRequest(method, opts.URL, bodyReader)
	if err != nil {
		return HTTPResponse{}, fmt.Errorf("build request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	client := b.httpClient
	if opts.DangerouslyIgnoreTLS || opts.TimeoutMs > 0 {
		client = timeoutClient(timeout, opts.DangerouslyIgnoreTLS)
	}

	resp, err := client.Do(req)
	if err != nil {
		b.Log("error", fmt.Sprintf("%s %s failed: %v", method, redact.URL(opts.URL), err))
		return HTTPResponse{}, fmt.Errorf("request failed: %w", err)
	}
	return b.finishResponse(method, opts.URL, resp)
}

func (b *Bridge) finishResponse(method, url string, resp *http.Response) (HTTPResponse, error) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return HTTPResponse{}, fmt.Errorf("read response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	preview := redact.Body(string(raw))
	truncated, total := truncateUTF8(preview, bodyPreviewBytes)
	suffix := ""
	if total > bodyPreviewBytes {
		suffix = fmt.Sprintf(" (%d bytes total)", total)
	}
	b.Log("info", fmt.Sprintf("%s %s -> %d %s%s", method, redact.URL(url), resp.StatusCode, truncated, suffix))

	return HTTPResponse{
		Status:   resp.StatusCode,
		Headers:  headers,
		BodyText: string(raw),
	}, nil
}

// truncateUTF8 cuts s to at most maxBytes, never splitting a multi-byte
// rune, and returns the cut string plus the original byte length.
func truncateUTF8(s string, maxBytes int) (string, int) {
	total := len(s)
	if total <= maxBytes {
		return s, total
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], total
}

func timeoutClient(timeout time.Duration, ignoreTLS bool) httpDoer {
	transport := &http.Transport{}
	if ignoreTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in per-request, plugin-requested
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
