package crawler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Method is an HTTP method restricted to the set the downloader knows how
// to build a body for.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
)

// Callback is invoked after a successful fetch with the Request that
// produced it and the Response received. It returns whatever the caller
// wants fanned out: a *Request, an Item, a slice of either, or an error.
type Callback func(req *Request, resp *Response) ([]any, error)

// FailureCallback is invoked when a Request ends with a non-OK Response and
// no retry is scheduled: its retries are exhausted, its failure is not
// retryable, or it failed without an HTTP exchange (e.g. robots-blocked).
type FailureCallback func(req *Request, resp *Response)

// Request is a single planned HTTP exchange. It implements Queueable so it
// can be scheduled directly on the PriorityQueue.
type Request struct {
	ID     uuid.UUID
	URL    *url.URL
	Method Method
	// Headers is treated as case-insensitive by http.Header under the hood.
	Headers http.Header
	Params  url.Values
	Data    []byte
	JSON    any

	Timeout          float64 // seconds
	MaxContentLength int64   // bytes

	// Encoding overrides the response's declared charset when set; the
	// empty string means "use whatever the response declares".
	Encoding string

	// History is the ordered chain of URLs that led to this Request; its
	// length is the crawl depth of this Request.
	History []*url.URL

	// Delay is how long to sleep, in seconds, before dispatch. 0 means
	// immediate. Retries set this to num_retries seconds (linear backoff).
	Delay float64

	MaxRetries  int
	numRetries  int
	ShouldRetry bool

	Callback        Callback
	FailureCallback FailureCallback
	CbKwargs        map[string]any

	priority int
	HasRun   bool

	enqueuedAt int64
	queuedAt   time.Time
}

// NewRequest builds a Request with sane defaults mirroring the orchestrator
// Config: GET, priority 100, no retries attempted yet.
func NewRequest(target *url.URL, opts ...func(*Request)) *Request {
	r := &Request{
		ID:               uuid.New(),
		URL:              target,
		Method:           MethodGet,
		Headers:          make(http.Header),
		priority:         PriorityDefault,
		MaxRetries:       3,
		Timeout:          5,
		MaxContentLength: 10 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Request) Priority() int     { return r.priority }
func (r *Request) EnqueuedAt() int64 { return r.enqueuedAt }

// SetPriority overrides the default priority; used by the link filter and
// robots/sitemap seeding to assign the priorities they classify a request
// at (1–10, or the link filter's 100 and 102).
func (r *Request) SetPriority(p int) { r.priority = p }

// MarkEnqueued stamps the monotonic enqueue counter. Called by the
// orchestrator immediately before Put, never by callers constructing a
// Request ahead of time.
func (r *Request) MarkEnqueued() { r.enqueuedAt = nextEnqueueTime() }

// SetQueuedAt records the wall-clock time a Request was handed to the
// queue, used only to compute queue-wait stats; it plays no part in
// ordering (EnqueuedAt's monotonic counter does that).
func (r *Request) SetQueuedAt(t time.Time) { r.queuedAt = t }

// QueuedAt returns the wall-clock time previously recorded by SetQueuedAt.
func (r *Request) QueuedAt() time.Time { return r.queuedAt }

// NumRetries reports how many times this Request has already been retried.
func (r *Request) NumRetries() int { return r.numRetries }

// SetRetry increments the retry counter and, if retries remain, marks the
// Request for re-dispatch with a linear backoff delay. It never mutates
// anything else about the Request (per the fetch-never-mutates-except-retry
// invariant).
func (r *Request) SetRetry() {
	if r.numRetries >= r.MaxRetries {
		r.ShouldRetry = false
		return
	}
	r.numRetries++
	r.ShouldRetry = true
	r.Delay = float64(r.numRetries)
}

// Clone returns a shallow copy of r with an independent History slice, so
// the derived Request's redirect/follow chain is its own.
func (r *Request) Clone() *Request {
	cp := *r
	cp.ID = uuid.New()
	cp.History = append([]*url.URL(nil), r.History...)
	cp.enqueuedAt = 0
	cp.HasRun = false
	cp.numRetries = 0
	cp.ShouldRetry = false
	return &cp
}
