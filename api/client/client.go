// Package client provides a thin wrapper around the net/http client used for
// every beacon node and key-manager call.
package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// Client is a wrapper object around the HTTP client.
type Client struct {
	hc      *http.Client
	baseURL *url.URL
	token   string
}

// NewClient constructs a new client with the provided options (ex WithTimeout).
// `host` is the base host + port used to construct request urls. This value can
// be a URL string, or NewClient will assume an http endpoint if just
// `host:port` is used.
func NewClient(host string, opts ...ClientOpt) (*Client, error) {
	u, err := urlForHost(host)
	if err != nil {
		return nil, err
	}
	c := &Client{
		hc:      &http.Client{},
		baseURL: u,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Token returns the bearer token used for key-manager authentication.
func (c *Client) Token() string {
	return c.token
}

// NodeURL returns a human-readable string representation of the node base url.
func (c *Client) NodeURL() string {
	return c.baseURL.String()
}

func urlForHost(h string) (*url.URL, error) {
	// try to parse as url (being permissive)
	u, err := url.Parse(h)
	if err == nil && u.Host != "" {
		return u, nil
	}
	// try to parse as host:port
	host, port, err := net.SplitHostPort(h)
	if err != nil {
		return nil, ErrMalformedHostname
	}
	return &url.URL{Host: net.JoinHostPort(host, port), Scheme: "http"}, nil
}

// Get executes a GET request against path and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string, opts ...ReqOption) ([]byte, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, opts...)
}

// GetWithQuery executes a GET request with a raw query string appended. The
// query is attached verbatim so comma-joined id lists stay unescaped.
func (c *Client) GetWithQuery(ctx context.Context, path, rawQuery string, opts ...ReqOption) ([]byte, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path, RawQuery: rawQuery})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, opts...)
}

// Post executes a POST request with the given body against path.
func (c *Client) Post(ctx context.Context, path string, body []byte, opts ...ReqOption) ([]byte, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return c.do(req, opts...)
}

func (c *Client) do(req *http.Request, opts ...ReqOption) (b []byte, err error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, o := range opts {
		o(req)
	}
	r, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := r.Body.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	b, err = io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading http response body")
	}
	if r.StatusCode != http.StatusOK {
		return b, non200Err(r, b)
	}
	return b, nil
}
