package crawler

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// CookieMiddleware carries cookies across requests to the same host using a
// single jar for the whole crawl.
type CookieMiddleware struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

// NewCookieMiddleware builds a CookieMiddleware with a public-suffix-aware
// jar, so cookies don't leak across unrelated domains sharing a registrable
// suffix.
func NewCookieMiddleware() *CookieMiddleware {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &CookieMiddleware{jar: jar}
}

func (m *CookieMiddleware) PreRequest(ctx context.Context, req *Request) {}

func (m *CookieMiddleware) ProcessRequest(ctx context.Context, req *Request) error {
	m.mu.Lock()
	cookies := m.jar.Cookies(req.URL)
	m.mu.Unlock()
	if len(cookies) == 0 {
		return nil
	}
	hdr := &http.Request{Header: req.Headers, URL: req.URL}
	for _, c := range cookies {
		hdr.AddCookie(c)
	}
	return nil
}

func (m *CookieMiddleware) ProcessResponse(ctx context.Context, req *Request, resp *Response) {
	if resp == nil || len(resp.Cookies) == 0 {
		return
	}
	m.mu.Lock()
	m.jar.SetCookies(resp.URL, resp.Cookies)
	m.mu.Unlock()
}

func (m *CookieMiddleware) ProcessException(ctx context.Context, req *Request, resp *Response, err error) {
}
