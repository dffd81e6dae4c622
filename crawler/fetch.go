package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/feedcrawler/core/crawler/downloader"
)

const streamChunkSize = 8 * 1024

// fetcher owns the single low-level Downloader shared by every worker and
// runs the full fetch algorithm around it: jittered delay, middleware
// hooks, size-capped streaming read, and exception-to-synthetic-status
// mapping. It never returns a Go error; every outcome is a Response.
type fetcher struct {
	downloader *downloader.Downloader
	middleware MiddlewareChain
	trace      bool
}

func newFetcher(d *downloader.Downloader, mw MiddlewareChain, trace bool) *fetcher {
	return &fetcher{downloader: d, middleware: mw, trace: trace}
}

// fetch runs one Request to completion, honoring its Delay, Timeout and
// MaxContentLength, and returns the resulting Response. It never mutates
// req except through the middleware chain's SetRetry calls.
func (f *fetcher) fetch(ctx context.Context, req *Request) *Response {
	if req.Delay > 0 {
		jitter := time.Duration(rand.Float64() * 0.1 * float64(time.Second))
		sleepFor := time.Duration(req.Delay*float64(time.Second)) + jitter
		timer := time.NewTimer(sleepFor)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return f.cancelledResponse(req)
		}
	}

	f.middleware.runPreRequest(ctx, req)

	if err := f.middleware.runProcessRequest(ctx, req); err != nil {
		var resp *Response
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			resp = f.syntheticResponse(req, StatusTimeout, ErrorTimeout)
		case errors.Is(err, context.Canceled):
			resp = f.cancelledResponse(req)
		default:
			resp = f.syntheticResponse(req, StatusGeneric, ErrorOther)
		}
		f.middleware.runProcessException(ctx, req, resp, err)
		return resp
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, time.Duration(req.Timeout*float64(time.Second)))
		defer cancel()
	}
	reqCtx, endSpan := startFetchSpan(reqCtx, f.trace, req.URL.String())
	defer endSpan()

	httpReq, err := f.buildHTTPRequest(reqCtx, req)
	if err != nil {
		resp := f.syntheticResponse(req, StatusGeneric, ErrorInvalidURL)
		f.middleware.runProcessException(ctx, req, resp, err)
		return resp
	}

	exchange := f.downloader.Do(reqCtx, httpReq)
	if exchange.Err != nil {
		resp := f.responseForError(req, exchange.Err)
		f.middleware.runProcessException(ctx, req, resp, exchange.Err)
		return resp
	}

	resp, err := f.readResponse(req, exchange)
	if err != nil {
		f.middleware.runProcessException(ctx, req, resp, err)
		return resp
	}

	f.middleware.runProcessResponse(ctx, req, resp)

	if resp.StatusCode >= 400 {
		resp.ErrorType = ErrorHTTPError
	}
	return resp
}

func (f *fetcher) buildHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target := *req.URL
	if len(req.Params) > 0 {
		q := target.Query()
		for k, vs := range req.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	switch {
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	case len(req.Data) > 0:
		body = bytes.NewReader(req.Data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), target.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.JSON != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// readResponse streams the body in fixed-size chunks, aborting with a 413
// once MaxContentLength is exceeded.
func (f *fetcher) readResponse(req *Request, exchange downloader.Exchange) (*Response, error) {
	httpResp := exchange.Response
	defer httpResp.Body.Close()

	resp := &Response{
		ID:              req.ID,
		URL:             httpResp.Request.URL,
		Method:          req.Method,
		StatusCode:      httpResp.StatusCode,
		Headers:         httpResp.Header,
		Cookies:         httpResp.Cookies(),
		Encoding:        req.Encoding,
		Meta:            req.CbKwargs,
		History:         append(append([]*url.URL(nil), req.History...), httpResp.Request.URL),
		RedirectHistory: redirectHistory(httpResp),
	}

	if req.MaxContentLength > 0 && httpResp.ContentLength > req.MaxContentLength {
		resp.StatusCode = StatusOversize
		resp.ErrorType = ErrorOther
		return resp, errOversize
	}

	var buf bytes.Buffer
	limit := req.MaxContentLength
	chunk := make([]byte, streamChunkSize)
	for {
		n, err := httpResp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if limit > 0 && int64(buf.Len()) > limit {
				resp.StatusCode = StatusOversize
				resp.ErrorType = ErrorOther
				return resp, errOversize
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			resp.StatusCode = StatusGeneric
			resp.ErrorType = ErrorOther
			return resp, err
		}
	}

	resp.Data = buf.Bytes()
	resp.ContentLength = int64(buf.Len())
	return resp, nil
}

func redirectHistory(resp *http.Response) []*url.URL {
	var chain []*url.URL
	for r := resp.Request; r != nil; r = r.Response.Request {
		if r.Response == nil {
			chain = append([]*url.URL{r.URL}, chain...)
			break
		}
		chain = append([]*url.URL{r.URL}, chain...)
	}
	return chain
}

var errOversize = errors.New("content length exceeds max_content_length")

// responseForError maps a transport-level error to a synthetic status code
// and ErrorType.
func (f *fetcher) responseForError(req *Request, err error) *Response {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return f.syntheticResponse(req, StatusTimeout, ErrorTimeout)
	case errors.Is(err, context.Canceled):
		return f.cancelledResponse(req)
	default:
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return f.syntheticResponse(req, StatusTimeout, ErrorTimeout)
		}
		return f.syntheticResponse(req, StatusGeneric, ErrorConnectionError)
	}
}

func (f *fetcher) cancelledResponse(req *Request) *Response {
	return f.syntheticResponse(req, StatusCancelled, ErrorOther)
}

func (f *fetcher) syntheticResponse(req *Request, status int, errType ErrorType) *Response {
	return &Response{
		ID:         req.ID,
		URL:        req.URL,
		Method:     req.Method,
		StatusCode: status,
		Headers:    make(http.Header),
		History:    append(append([]*url.URL(nil), req.History...), req.URL),
		ErrorType:  errType,
	}
}
