package client

import (
	"net/http"
	"time"
)

// ReqOption is a per-request functional option.
type ReqOption func(*http.Request)

// WithAuthorizationToken sets a bearer token on a single request.
func WithAuthorizationToken(token string) ReqOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// ClientOpt is a functional option for the Client type (http.Client wrapper).
type ClientOpt func(*Client)

// WithTimeout sets the .Timeout attribute of the wrapped http.Client.
func WithTimeout(timeout time.Duration) ClientOpt {
	return func(c *Client) {
		c.hc.Timeout = timeout
	}
}

// WithCustomTransport replaces the underlying http's transport with a custom one.
func WithCustomTransport(t http.RoundTripper) ClientOpt {
	return func(c *Client) {
		c.hc.Transport = t
	}
}

// WithAuthenticationToken sets a bearer token to be sent with every request.
func WithAuthenticationToken(token string) ClientOpt {
	return func(c *Client) {
		c.token = token
	}
}
