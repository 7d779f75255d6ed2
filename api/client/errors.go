package client

import (
	"context"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

// ErrMalformedHostname is returned when a host string cannot be parsed as
// either a URL or a host:port pair.
var ErrMalformedHostname = errors.New("hostname must include port, separated by one colon, like example.com:3500")

// ErrNotOK is returned for any non-200 response.
var ErrNotOK = errors.New("did not receive 2xx response from API")

// ErrUnauthorized is returned for 401 and 403 responses, typically a bad or
// missing key-manager bearer token.
var ErrUnauthorized = errors.New("authorization failed")

func non200Err(r *http.Response, body []byte) error {
	if r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden {
		return errors.Wrapf(ErrUnauthorized, "url=%s, status=%d", r.Request.URL, r.StatusCode)
	}
	return errors.Wrapf(ErrNotOK, "url=%s, status=%d, body=%s", r.Request.URL, r.StatusCode, string(body))
}

// IsConnectionError reports whether the error is a transport-level failure
// (connection refused, DNS, reset) rather than a timeout.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeoutError(err) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsTimeoutError reports whether the error is a read timeout or a deadline
// expiry.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
