package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/resilience"
)

// Headers forwarded to the renderer so it can produce the right page
// variant for the requesting browser.
var forwardedHeaders = []string{"Cookie", "Accept", "Accept-Language", "User-Agent"}

// RendererClient fetches rendered pages from the upstream page
// renderer for navigations the gate allowed.
type RendererClient struct {
	httpClient *http.Client
	baseURL    string
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewRendererClient creates a renderer client. The bulkhead bounds
// concurrent renders so a slow renderer cannot pile up goroutines in
// the gateway.
func NewRendererClient(httpClient *http.Client, baseURL string, bulkhead *resilience.Bulkhead, cfg resilience.Config, logger *zap.Logger) *RendererClient {
	return &RendererClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		bulkhead:   bulkhead,
		cfg:        cfg,
		logger:     logger,
	}
}

// Render fetches the page at path, forwarding browser headers. Retried
// on transport failure; the response is buffered (pages are small).
func (c *RendererClient) Render(ctx context.Context, path string, header http.Header) (*domain.RenderedPage, error) {
	ctx, span := tracer.Start(ctx, "RendererClient.Render")
	defer span.End()
	span.SetAttributes(attribute.String("page.path", path))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "renderer bulkhead acquire"}
	}
	defer c.bulkhead.Release()

	var page domain.RenderedPage

	err := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
		url := fmt.Sprintf("%s%s", c.baseURL, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		for _, h := range forwardedHeaders {
			if v := header.Get(h); v != "" {
				req.Header.Set(h, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		page = domain.RenderedPage{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}
		return nil
	})
	if err != nil {
		c.logger.Error("renderer: fetch failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &domain.ErrUpstream{Service: "renderer", Err: err}
	}

	return &page, nil
}
