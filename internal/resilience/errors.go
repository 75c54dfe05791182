package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// StatusError is a non-2xx HTTP response from the portal.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// IsTransient reports whether err is worth another attempt: 408/429/5xx
// responses, network timeouts, refused or reset connections, and truncated
// bodies. Cancellation is never transient. A deadline is: http.Client
// timeouts surface as context.DeadlineExceeded, and Do stops on its own when
// the caller's context is the one that expired.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return IsTransientHTTPStatus(se.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// IsTransientHTTPStatus reports whether a status code is retryable.
func IsTransientHTTPStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500 && code <= 599
}
