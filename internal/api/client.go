package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// maxRejectionMessage bounds how much of a rejection body is surfaced to the
// user verbatim.
const maxRejectionMessage = 300

// Client is the bearer-auth HTTP client shared by the query engine, the meta
// resolver and the submission controller. The base URL must already be
// validated by the config layer.
type Client struct {
	Base       string
	HTTPClient *http.Client
	Log        *logrus.Logger
}

// New creates a client for a validated base URL.
func New(base string) *Client {
	return &Client{
		Base:       strings.TrimRight(base, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Log:        logrus.StandardLogger(),
	}
}

// IsHTMLLike reports whether a body looks like an HTML document rather than
// structured data. Matches any leading tag, not just a doctype, since
// misrouted gateways emit both.
func IsHTMLLike(body []byte) bool {
	t := strings.ToLower(strings.TrimSpace(string(body)))
	return strings.HasPrefix(t, "<!doctype") || strings.HasPrefix(t, "<html") || strings.HasPrefix(t, "<")
}

// GetJSON issues one authenticated GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, token string, out any) error {
	return c.do(ctx, http.MethodGet, path, query, token, nil, out)
}

// PostJSON issues one authenticated POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, token string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, token, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	if c == nil || c.Base == "" {
		return &ConfigError{Reason: "base endpoint not configured"}
	}
	full := c.Base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, full, &buf)
	if err != nil {
		return &TransportError{URL: full, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: full, Err: err}
	}
	defer resp.Body.Close()

	// Always read as text first: the body shape decides the error class
	// before the status code does.
	raw, _ := io.ReadAll(resp.Body)
	if IsHTMLLike(raw) {
		c.log().WithField("url", full).Warn("html-shaped response, refusing to parse")
		return &ProtocolMismatchError{URL: full, Snippet: truncate(string(raw), 80)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerRejection{
			URL:     full,
			Status:  resp.StatusCode,
			Message: rejectionMessage(raw),
		}
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &ProtocolMismatchError{URL: full, Snippet: truncate(string(raw), 80)}
		}
	}
	return nil
}

func (c *Client) log() *logrus.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

// rejectionMessage prefers the body's "error" field when present, otherwise
// surfaces the raw body, truncated.
func rejectionMessage(raw []byte) string {
	if v := gjson.GetBytes(raw, "error"); v.Exists() && v.String() != "" {
		return truncate(v.String(), maxRejectionMessage)
	}
	return truncate(strings.TrimSpace(string(raw)), maxRejectionMessage)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
