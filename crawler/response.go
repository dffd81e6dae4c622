package crawler

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// ErrorType categorizes why a Response does not represent a clean 2xx
// exchange. The zero value ErrorNone means success.
type ErrorType string

const (
	ErrorNone            ErrorType = ""
	ErrorDNSFailure      ErrorType = "dns_failure"
	ErrorConnectionError ErrorType = "connection_error"
	ErrorSSLError        ErrorType = "ssl_error"
	ErrorHTTPError       ErrorType = "http_error"
	ErrorTimeout         ErrorType = "timeout"
	ErrorInvalidURL      ErrorType = "invalid_url"
	ErrorOther           ErrorType = "other"
)

// Synthetic HTTP status codes the downloader manufactures for local
// failures that never reached a real HTTP exchange.
const (
	StatusTimeout   = 408
	StatusOversize  = 413
	StatusCancelled = 499
	StatusGeneric   = 500
	StatusFiltered  = 415
)

// Response is the result of a single HTTP exchange, successful or
// synthesized. It is always returned by the downloader, never an error.
type Response struct {
	ID         uuid.UUID
	URL        *url.URL
	Method     Method
	StatusCode int

	Headers  http.Header
	Cookies  []*http.Cookie
	Encoding string

	Text string
	Data []byte
	JSON any

	History         []*url.URL
	RedirectHistory []*url.URL
	ContentLength   int64

	ErrorType ErrorType

	// Meta is carried through from the originating Request's CbKwargs.
	Meta map[string]any
}

// Origin returns scheme+host of the final URL.
func (r *Response) Origin() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Scheme + "://" + r.URL.Host
}

// OK reports whether the response represents a clean 2xx exchange, or the
// sentinel status 0 used by tests that never set a status.
func (r *Response) OK() bool {
	return r.StatusCode == 0 || (r.StatusCode >= 200 && r.StatusCode <= 299)
}

// ErrorCategory maps a Response's status/error-type onto the stats
// taxonomy.
func (r *Response) ErrorCategory() ErrorCategory {
	switch {
	case r.OK():
		return ""
	case r.ErrorType == ErrorTimeout:
		return CategoryTimeout
	case r.ErrorType == ErrorDNSFailure, r.ErrorType == ErrorConnectionError, r.ErrorType == ErrorSSLError:
		return CategoryNetwork
	case r.StatusCode >= 400 && r.StatusCode < 500:
		return CategoryHTTPClient
	case r.StatusCode >= 500:
		return CategoryHTTPServer
	default:
		return CategoryOther
	}
}
