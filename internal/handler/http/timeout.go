package http

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// timeoutBody is written when the deadline passes before the handler responds.
const timeoutBody = `{"error":"request timeout"}`

// Timeout returns middleware that enforces a per-request deadline.
// If the handler has not started its response when the deadline passes, the
// client gets 504 Gateway Timeout. The request context carries the deadline so
// the fetch pipeline below stops at the same moment.
//
// The handler writes into its own header map, copied to the real writer only
// on WriteHeader, so the timeout branch never races with handler header writes.
// A panic in the handler is re-raised on the serving goroutine so Recover can
// see it.
func Timeout(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			r = r.WithContext(ctx)

			done := make(chan struct{})
			panicked := make(chan any, 1)
			tw := &timeoutResponseWriter{w: w, header: make(http.Header)}

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case p := <-panicked:
				panic(p)
			case <-done:
				return
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				if !tw.wroteHeader {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					_, _ = w.Write([]byte(timeoutBody))
				}
			}
		})
	}
}

// timeoutResponseWriter buffers headers until the handler commits a status and
// drops every write after the deadline.
type timeoutResponseWriter struct {
	w           http.ResponseWriter
	header      http.Header
	mu          sync.Mutex
	timedOut    bool
	wroteHeader bool
}

func (tw *timeoutResponseWriter) Header() http.Header {
	return tw.header
}

func (tw *timeoutResponseWriter) WriteHeader(statusCode int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.writeHeaderLocked(statusCode)
}

func (tw *timeoutResponseWriter) writeHeaderLocked(statusCode int) {
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	dst := tw.w.Header()
	for k, v := range tw.header {
		dst[k] = v
	}
	tw.w.WriteHeader(statusCode)
}

func (tw *timeoutResponseWriter) Write(data []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.w.Write(data)
}
