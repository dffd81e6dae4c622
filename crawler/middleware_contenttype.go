package crawler

import (
	"context"
	"encoding/json"
	"mime"
	"strings"
)

// ContentTypeMiddleware decodes a Response's raw Data into Text and/or JSON
// based on its Content-Type header. It never fails the request: a decode
// error just leaves JSON nil.
type ContentTypeMiddleware struct{}

func NewContentTypeMiddleware() *ContentTypeMiddleware { return &ContentTypeMiddleware{} }

func (m *ContentTypeMiddleware) PreRequest(ctx context.Context, req *Request) {}
func (m *ContentTypeMiddleware) ProcessRequest(ctx context.Context, req *Request) error { return nil }

func (m *ContentTypeMiddleware) ProcessResponse(ctx context.Context, req *Request, resp *Response) {
	if resp == nil || len(resp.Data) == 0 {
		return
	}
	ct := resp.Headers.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = ct
	}
	// A Request.Encoding override always wins over the response-declared
	// charset.
	if resp.Encoding == "" {
		if cs, ok := params["charset"]; ok {
			resp.Encoding = cs
		}
	}

	switch {
	case strings.Contains(mediaType, "json"):
		resp.Text = string(resp.Data)
		var v any
		if err := json.Unmarshal(resp.Data, &v); err == nil {
			resp.JSON = v
		}
	case strings.HasPrefix(mediaType, "text/"), strings.Contains(mediaType, "xml"):
		resp.Text = string(resp.Data)
	}
}

func (m *ContentTypeMiddleware) ProcessException(ctx context.Context, req *Request, resp *Response, err error) {
}
