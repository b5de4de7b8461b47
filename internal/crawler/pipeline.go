package crawler

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// FetchPipeline performs the HTTP retrieval and the render decision. The
// terminal outcome is typed: (page, true) when there is document content to
// process, (Page{}, false) when the address yields nothing — the caller
// abandons it with no page produced.
type FetchPipeline struct {
	fetcher  Fetcher
	renderer Renderer // nil when rendering is unavailable
	detector Detector
	policy   RenderPolicy
	logger   *zap.Logger
}

// NewFetchPipeline wires the fetch pipeline. renderer may be nil.
func NewFetchPipeline(fetcher Fetcher, renderer Renderer, detector Detector, policy RenderPolicy, logger *zap.Logger) *FetchPipeline {
	return &FetchPipeline{
		fetcher:  fetcher,
		renderer: renderer,
		detector: detector,
		policy:   policy,
		logger:   logger,
	}
}

// Fetch retrieves one address. Only a 200-status, HTML-typed response counts
// as raw content; every other outcome is a soft failure for this address.
// Depending on the render policy the rendering collaborator may replace the
// raw content; render failures fall back to whatever raw content exists.
func (p *FetchPipeline) Fetch(ctx context.Context, rawURL string) (Page, bool) {
	var raw Page
	hasRaw := false

	page, err := p.fetcher.Fetch(ctx, rawURL)
	switch {
	case err != nil:
		p.logger.Debug("fetch failed", zap.String("url", rawURL), zap.Error(err))
	case page.StatusCode != 200:
		p.logger.Debug("non-200 response", zap.String("url", rawURL), zap.Int("status", page.StatusCode))
	case !isHTMLContentType(page.Headers.Get("Content-Type")):
		p.logger.Debug("non-HTML content type", zap.String("url", rawURL),
			zap.String("content_type", page.Headers.Get("Content-Type")))
	default:
		raw = page
		hasRaw = true
	}

	if p.shouldRender(raw, hasRaw) && p.renderer != nil {
		rendersTotal.Inc()
		rendered, rerr := p.renderer.Render(ctx, rawURL)
		if rerr == nil && len(rendered.Body) > 0 {
			return rendered, true
		}
		renderFailures.Inc()
		p.logger.Warn("render failed; falling back to raw content",
			zap.String("url", rawURL), zap.Error(rerr))
	}

	if !hasRaw {
		return Page{}, false
	}
	return raw, true
}

func (p *FetchPipeline) shouldRender(raw Page, hasRaw bool) bool {
	switch p.policy {
	case RenderAlways:
		return true
	case RenderNever:
		return false
	default:
		return !hasRaw || (p.detector != nil && p.detector.NeedsRender(raw))
	}
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml")
}
