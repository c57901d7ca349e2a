package preview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"centscape-preview/internal/domain/entity"
	"centscape-preview/internal/handler/http/respond"
	"centscape-preview/internal/observability/logging"
	"centscape-preview/internal/usecase/fetch"
	previewUC "centscape-preview/internal/usecase/preview"
)

// Previewer is the use case behind the handler.
type Previewer interface {
	Preview(ctx context.Context, in previewUC.Input) (*entity.Preview, error)
}

// Handler serves POST /preview.
type Handler struct {
	Svc Previewer
}

// ServeHTTP リンクプレビュー取得
// @Summary      リンクプレビュー取得
// @Description  商品ページの URL からタイトル・画像・価格・通貨・サイト名を抽出します。
// @Description  raw_html を指定するとページを取得せずにその HTML から抽出します（サーバー設定で有効な場合のみ）。
// @Tags         preview
// @Accept       json
// @Produce      json
// @Param        request body Request true "プレビュー対象"
// @Success      200 {object} DTO "抽出結果（存在しない項目は null）"
// @Failure      400 {object} ErrorResponse "Bad request - invalid body, invalid url, blocked host, redirect limit, non-HTML, too large"
// @Failure      403 {object} ErrorResponse "raw_html is disabled"
// @Failure      413 {object} ErrorResponse "Request body too large"
// @Failure      429 {object} ErrorResponse "Too many requests - rate limit exceeded"
// @Header       429 {integer} Retry-After "Seconds until the client should retry"
// @Failure      502 {object} ErrorResponse "Upstream timeout, network error or error status"
// @Failure      503 {object} ErrorResponse "Upstream host temporarily unavailable"
// @Failure      504 {object} ErrorResponse "Request timeout"
// @Router       /preview [post]
func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.SafeError(w, http.StatusRequestEntityTooLarge,
				respond.NewAppError(http.StatusRequestEntityTooLarge, "request body too large", err))
			return
		}
		respond.SafeError(w, http.StatusBadRequest,
			respond.NewAppError(http.StatusBadRequest, "invalid request body", err))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respond.SafeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	p, err := h.Svc.Preview(r.Context(), previewUC.Input{URL: req.URL, RawHTML: req.RawHTML})
	if err != nil {
		code, reply := toResponse(err)
		logging.FromContext(r.Context()).Info("preview request failed",
			slog.String("url", respond.SanitizeURL(req.URL)),
			slog.Int("status", code),
			slog.String("kind", fetch.KindOf(err).String()))
		respond.SafeError(w, code, reply)
		return
	}

	respond.JSON(w, http.StatusOK, toDTO(p))
}

// toResponse maps a use case error to its HTTP status and the error handed
// to respond.SafeError:
//   - raw_html disabled → 403
//   - breaker open → 503
//   - client-caused fetch failure (invalid, blocked, redirects, type, size) → 400
//   - upstream-caused fetch failure (timeout, network, status) → 502
//   - anything else → 500
//
// Client faults are passed through as is: *fetch.Error is a
// respond.PublicError, so only its sentinel message reaches the client.
func toResponse(err error) (int, error) {
	switch {
	case errors.Is(err, previewUC.ErrRawHTMLDisabled):
		return http.StatusForbidden, respond.NewAppError(http.StatusForbidden, previewUC.ErrRawHTMLDisabled.Error(), nil)
	case errors.Is(err, previewUC.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, respond.NewAppError(http.StatusServiceUnavailable, previewUC.ErrUpstreamUnavailable.Error(), err)
	}

	var fe *fetch.Error
	if errors.As(err, &fe) {
		if fe.Kind.IsClientFault() {
			return http.StatusBadRequest, err
		}
		if fe.Kind != fetch.KindUnknown {
			return http.StatusBadGateway, respond.NewAppError(http.StatusBadGateway, fe.Message(), err)
		}
	}

	return http.StatusInternalServerError, err
}
