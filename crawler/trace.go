package crawler

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies spans emitted by the downloader in whatever
// otel SDK the caller has wired up via NewFromEnv's Config.Trace option.
const tracerName = "feedcrawler/core"

// traceHooks attaches a net/http/httptrace.ClientTrace to ctx that records
// DNS/connect/request-phase span events under the given request span.
func traceHooks(ctx context.Context, span trace.Span) context.Context {
	start := time.Now()
	elapsedMs := func() int64 { return time.Since(start).Milliseconds() }

	ct := &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			span.AddEvent("dns_resolve_start", trace.WithAttributes(
				attribute.String("host", info.Host),
				attribute.Int64("elapsed_ms", elapsedMs()),
			))
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			span.AddEvent("dns_resolve_end", trace.WithAttributes(
				attribute.Int64("elapsed_ms", elapsedMs()),
				attribute.Bool("coalesced", info.Coalesced),
			))
		},
		ConnectStart: func(network, addr string) {
			span.AddEvent("connection_create_start", trace.WithAttributes(
				attribute.String("network", network),
				attribute.String("addr", addr),
				attribute.Int64("elapsed_ms", elapsedMs()),
			))
		},
		ConnectDone: func(network, addr string, err error) {
			attrs := []attribute.KeyValue{
				attribute.String("network", network),
				attribute.String("addr", addr),
				attribute.Int64("elapsed_ms", elapsedMs()),
			}
			if err != nil {
				attrs = append(attrs, attribute.String("error", err.Error()))
			}
			span.AddEvent("connection_create_end", trace.WithAttributes(attrs...))
		},
		GotConn: func(info httptrace.GotConnInfo) {
			span.AddEvent("request_start", trace.WithAttributes(
				attribute.Bool("reused", info.Reused),
				attribute.Int64("elapsed_ms", elapsedMs()),
			))
		},
		GotFirstResponseByte: func() {
			span.AddEvent("request_end", trace.WithAttributes(
				attribute.Int64("elapsed_ms", elapsedMs()),
			))
		},
		TLSHandshakeStart: func() {
			span.AddEvent("tls_handshake_start", trace.WithAttributes(
				attribute.Int64("elapsed_ms", elapsedMs()),
			))
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			span.AddEvent("tls_handshake_end", trace.WithAttributes(
				attribute.Int64("elapsed_ms", elapsedMs()),
			))
		},
	}
	return httptrace.WithClientTrace(ctx, ct)
}

// startFetchSpan starts a "downloader.fetch" span, carrying the request URL
// as its "url" attribute, when enabled is true; the returned context carries both the
// span and (when enabled) the httptrace hooks, and must be ended by the
// caller via the returned end func regardless of outcome.
func startFetchSpan(ctx context.Context, enabled bool, url string) (context.Context, func()) {
	if !enabled {
		return ctx, func() {}
	}
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "downloader.fetch", trace.WithAttributes(
		attribute.String("url", url),
	))
	ctx = traceHooks(ctx, span)
	return ctx, func() { span.End() }
}
