package handler

import (
	"html"
	"net/http"

	"github.com/zenbilling/zenbilling-edge-go/internal/port"

	"go.uber.org/zap"
)

// pageProxyHandler forwards allowed navigations to the upstream page
// renderer and streams back the buffered result. With no renderer
// configured (local development) it serves a minimal shell so the
// gate's redirects are still observable.
func pageProxyHandler(renderer port.PageRenderer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET page")
		defer span.End()

		if renderer == nil {
			// The decoded path is attacker-controlled and lands inside an
			// attribute; escape it before reflecting.
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("<!doctype html><title>ZenBilling</title><div id=\"app\" data-path=\"" + html.EscapeString(r.URL.Path) + "\"></div>"))
			return
		}

		page, err := renderer.Render(ctx, r.URL.Path, r.Header)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if page.ContentType != "" {
			w.Header().Set("Content-Type", page.ContentType)
		}
		w.WriteHeader(page.Status)
		if _, err := w.Write(page.Body); err != nil {
			logger.Warn("page proxy: write failed",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
	}
}
