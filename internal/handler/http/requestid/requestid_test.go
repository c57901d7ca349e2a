package requestid_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"centscape-preview/internal/domain/entity"
	"centscape-preview/internal/handler/http/preview"
	"centscape-preview/internal/handler/http/requestid"
	"centscape-preview/internal/usecase/fetch"
	previewUC "centscape-preview/internal/usecase/preview"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPreviewer remembers the request ID the use case was called with.
type recordingPreviewer struct {
	seen string
	err  error
}

func (p *recordingPreviewer) Preview(ctx context.Context, in previewUC.Input) (*entity.Preview, error) {
	p.seen = requestid.FromContext(ctx)
	if p.err != nil {
		return nil, p.err
	}
	return &entity.Preview{SourceURL: in.URL}, nil
}

func postPreview(svc preview.Previewer, header string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	preview.Register(mux, svc)

	req := httptest.NewRequest(http.MethodPost, "/preview",
		strings.NewReader(`{"url":"https://shop.example.com/p/1"}`))
	if header != "" {
		req.Header.Set(requestid.RequestIDHeader, header)
	}
	rr := httptest.NewRecorder()
	requestid.Middleware(mux).ServeHTTP(rr, req)
	return rr
}

func TestMiddleware_GeneratesIDForPreview(t *testing.T) {
	svc := &recordingPreviewer{}
	rr := postPreview(svc, "")

	require.Equal(t, http.StatusOK, rr.Code)
	got := rr.Header().Get(requestid.RequestIDHeader)
	id, err := uuid.Parse(got)
	require.NoError(t, err, "generated ID should be a UUID")
	assert.Equal(t, uuid.Version(4), id.Version())
	assert.Equal(t, got, svc.seen, "the use case sees the ID returned to the client")
}

func TestMiddleware_ReusesClientID(t *testing.T) {
	ids := []string{
		"checkout-7f3a",
		"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		"app.ios:retry-2",
		strings.Repeat("a", 128),
	}

	for _, in := range ids {
		t.Run(in[:min(len(in), 20)], func(t *testing.T) {
			svc := &recordingPreviewer{}
			rr := postPreview(svc, in)

			assert.Equal(t, in, rr.Header().Get(requestid.RequestIDHeader))
			assert.Equal(t, in, svc.seen)
		})
	}
}

func TestMiddleware_ReplacesMalformedID(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"too long", strings.Repeat("a", 129)},
		{"log injection", "abc\nlevel=ERROR msg=forged"},
		{"spaces", "my request"},
		{"quotes", `"><script>`},
		{"non ascii", "идентификатор"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &recordingPreviewer{}
			rr := postPreview(svc, tt.in)

			got := rr.Header().Get(requestid.RequestIDHeader)
			assert.NotEqual(t, tt.in, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err, "a malformed ID is replaced by a fresh UUID")
			assert.Equal(t, got, svc.seen)
		})
	}
}

func TestMiddleware_IDOnFailedPreview(t *testing.T) {
	svc := &recordingPreviewer{
		err: fetch.NewError(fetch.KindGuardBlocked, "http://10.0.0.7/", errors.New("private")),
	}
	rr := postPreview(svc, "support-ticket-42")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "support-ticket-42", rr.Header().Get(requestid.RequestIDHeader))
	assert.Equal(t, "support-ticket-42", svc.seen)
}

func TestMiddleware_DistinctIDsPerPreview(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id := postPreview(&recordingPreviewer{}, "").Header().Get(requestid.RequestIDHeader)
		assert.False(t, seen[id], "duplicate request ID %s", id)
		seen[id] = true
	}
}

func TestFromContext(t *testing.T) {
	assert.Empty(t, requestid.FromContext(context.Background()))
	assert.Empty(t, requestid.FromContext(context.WithValue(context.Background(), requestid.RequestIDKey, 42)),
		"a non-string value is ignored")

	ctx := requestid.WithRequestID(context.Background(), "checkout-7f3a")
	assert.Equal(t, "checkout-7f3a", requestid.FromContext(ctx))
}
