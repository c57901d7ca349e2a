package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"centscape-preview/internal/domain/entity"
	hpreview "centscape-preview/internal/handler/http/preview"
	"centscape-preview/internal/usecase/fetch"
	previewUC "centscape-preview/internal/usecase/preview"
)

// previewFunc adapts a function to hpreview.Previewer.
type previewFunc func(ctx context.Context, in previewUC.Input) (*entity.Preview, error)

func (f previewFunc) Preview(ctx context.Context, in previewUC.Input) (*entity.Preview, error) {
	return f(ctx, in)
}

// waitForDeadline blocks like a fetch stuck on a slow upstream and fails the
// way the fetcher does once the request deadline passes.
func waitForDeadline(ctx context.Context, in previewUC.Input) (*entity.Preview, error) {
	<-ctx.Done()
	return nil, fetch.NewError(fetch.KindTimeout, in.URL, ctx.Err())
}

// timedPreview mounts POST /preview behind Timeout. finished is closed once
// the preview handler has returned, including after a timeout.
func timedPreview(d time.Duration, svc hpreview.Previewer) (h http.Handler, finished <-chan struct{}) {
	mux := http.NewServeMux()
	hpreview.Register(mux, svc)

	done := make(chan struct{})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		mux.ServeHTTP(w, r)
	})
	return Timeout(d)(inner), done
}

func previewRequest(ctx context.Context) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/preview",
		strings.NewReader(`{"url":"https://shop.example.com/desk"}`))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(ctx)
}

func TestTimeout_FastPreviewPassesThrough(t *testing.T) {
	title := "Walnut Desk"
	h, _ := timedPreview(time.Second, previewFunc(func(_ context.Context, in previewUC.Input) (*entity.Preview, error) {
		return &entity.Preview{Title: &title, SourceURL: in.URL}, nil
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, previewRequest(context.Background()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected handler Content-Type to reach the client, got %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["title"] != title {
		t.Errorf("expected title %q, got %v", title, body["title"])
	}
}

func TestTimeout_SlowFetchGets504(t *testing.T) {
	var sawErr error
	h, finished := timedPreview(30*time.Millisecond, previewFunc(func(ctx context.Context, in previewUC.Input) (*entity.Preview, error) {
		p, err := waitForDeadline(ctx, in)
		sawErr = ctx.Err()
		return p, err
	}))

	start := time.Now()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, previewRequest(context.Background()))
	elapsed := time.Since(start)
	<-finished

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected status 504, got %d", rec.Code)
	}
	// プレビューハンドラーの遅れた 502 応答は破棄される
	if rec.Body.String() != timeoutBody {
		t.Errorf("expected only the timeout body, got %q", rec.Body.String())
	}
	if !errors.Is(sawErr, context.DeadlineExceeded) {
		t.Errorf("expected the previewer to see DeadlineExceeded, got %v", sawErr)
	}
	if elapsed > time.Second {
		t.Errorf("expected the 504 near the 30ms deadline, took %v", elapsed)
	}
}

func TestTimeout_DeadlineReachesPreviewer(t *testing.T) {
	var (
		deadline time.Time
		ok       bool
	)
	h, _ := timedPreview(2*time.Second, previewFunc(func(ctx context.Context, in previewUC.Input) (*entity.Preview, error) {
		deadline, ok = ctx.Deadline()
		return &entity.Preview{SourceURL: in.URL}, nil
	}))

	start := time.Now()
	h.ServeHTTP(httptest.NewRecorder(), previewRequest(context.Background()))

	if !ok {
		t.Fatal("expected the previewer context to carry a deadline")
	}
	if d := deadline.Sub(start); d <= 0 || d > 2*time.Second {
		t.Errorf("expected the deadline within 2s of the request, got %v", d)
	}
}

func TestTimeout_EarlierServerDeadlineWins(t *testing.T) {
	h, finished := timedPreview(time.Hour, previewFunc(waitForDeadline))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, previewRequest(ctx))
	<-finished

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected status 504, got %d", rec.Code)
	}
}

func TestTimeout_ErrorBeforeDeadlineIsKept(t *testing.T) {
	h, _ := timedPreview(time.Second, previewFunc(func(_ context.Context, in previewUC.Input) (*entity.Preview, error) {
		return nil, fetch.NewError(fetch.KindGuardBlocked, in.URL, errors.New("resolves to 10.0.0.7"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, previewRequest(context.Background()))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "blocked private host") {
		t.Errorf("expected the guard message, got %q", rec.Body.String())
	}
}

func TestTimeout_PreviewerPanicReachesRecover(t *testing.T) {
	h, _ := timedPreview(time.Second, previewFunc(func(context.Context, previewUC.Input) (*entity.Preview, error) {
		panic("extractor blew up")
	}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := httptest.NewRecorder()
	Recover(logger)(h).ServeHTTP(rec, previewRequest(context.Background()))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "extractor blew up") {
		t.Errorf("panic value must not reach the client, got %q", rec.Body.String())
	}
}
