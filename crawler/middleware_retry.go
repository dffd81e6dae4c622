package crawler

import "context"

// retryableStatus is the set of HTTP status codes treated as transient,
// worth a retry rather than a permanent failure.
var retryableStatus = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// RetryMiddleware flags a response as retryable when its status falls in
// retryableStatus and the request hasn't exhausted MaxRetries. It never
// performs the retry itself; it only marks req.ShouldRetry so the caller
// re-enqueues it.
type RetryMiddleware struct{}

func NewRetryMiddleware() *RetryMiddleware { return &RetryMiddleware{} }

func (m *RetryMiddleware) PreRequest(ctx context.Context, req *Request) {}
func (m *RetryMiddleware) ProcessRequest(ctx context.Context, req *Request) error { return nil }

func (m *RetryMiddleware) ProcessResponse(ctx context.Context, req *Request, resp *Response) {
	if resp == nil {
		return
	}
	if retryableStatus[resp.StatusCode] && req.NumRetries() < req.MaxRetries {
		req.SetRetry()
	}
}

func (m *RetryMiddleware) ProcessException(ctx context.Context, req *Request, resp *Response, err error) {
	if resp == nil {
		return
	}
	// Cancellation (StatusCancelled) is never retried: the caller asked to
	// stop, retrying would fight the shutdown.
	if resp.StatusCode == StatusCancelled {
		return
	}
	// Network failures (DNS, connect) are not retried here; the downloader's
	// transport already retries transient network errors itself.
	if resp.ErrorType == ErrorTimeout && req.NumRetries() < req.MaxRetries {
		req.SetRetry()
	}
}
