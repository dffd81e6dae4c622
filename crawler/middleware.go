package crawler

import "context"

// Middleware implements the four fixed lifecycle hooks invoked around a
// single fetch. All four hooks are optional in the sense that a concrete
// middleware may leave any of them a no-op; the chain calls every hook on
// every middleware in configured order.
//
// Middleware lives in the crawler package rather than a subpackage: every
// built-in (robots, throttle, retry, cookies, content-type, monitoring)
// closes over *Request/*Response, and the orchestrator needs to build its
// default chain internally. A subpackage depending on crawler for those
// types, with crawler depending back on it for the default chain, would be
// an import cycle.
type Middleware interface {
	// PreRequest runs first, before process_request, typically used for
	// bookkeeping that doesn't block (e.g. start-time stamping).
	PreRequest(ctx context.Context, req *Request)
	// ProcessRequest runs immediately before the network call. Returning a
	// non-nil error blocks the request (e.g. robots disallow); the fetch
	// is aborted and the error is categorized by the caller.
	ProcessRequest(ctx context.Context, req *Request) error
	// ProcessResponse runs after a successful HTTP exchange, before the
	// fetch algorithm's raise-for-status step. Retry eligibility is decided
	// here, by RetryMiddleware.
	ProcessResponse(ctx context.Context, req *Request, resp *Response)
	// ProcessException runs when the exchange itself failed (network,
	// timeout, oversize, etc.), after the synthetic Response has been
	// built, so monitoring-style middleware can still record the outcome.
	ProcessException(ctx context.Context, req *Request, resp *Response, err error)
}

// MiddlewareChain runs an ordered list of Middleware. The default chain
// order is robots, throttle, retry, cookies, content-type, monitoring.
type MiddlewareChain []Middleware

func (c MiddlewareChain) runPreRequest(ctx context.Context, req *Request) {
	for _, m := range c {
		m.PreRequest(ctx, req)
	}
}

// runProcessRequest stops at the first middleware that blocks the request,
// returning its error. Middlewares ordered earlier (robots) get first say.
func (c MiddlewareChain) runProcessRequest(ctx context.Context, req *Request) error {
	for _, m := range c {
		if err := m.ProcessRequest(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (c MiddlewareChain) runProcessResponse(ctx context.Context, req *Request, resp *Response) {
	for _, m := range c {
		m.ProcessResponse(ctx, req, resp)
	}
}

func (c MiddlewareChain) runProcessException(ctx context.Context, req *Request, resp *Response, err error) {
	for _, m := range c {
		m.ProcessException(ctx, req, resp, err)
	}
}
