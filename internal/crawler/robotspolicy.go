package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RobotsGate enforces robots.txt per origin. The exclusion policy is fetched
// lazily on first check, retrieval is serialized per origin, and the result is
// cached for the crawl's lifetime. Any retrieval or parse failure caches a
// permissive policy: the gate fails open.
type RobotsGate struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
	cache     sync.Map // origin -> *robotstxt.RobotsData
	group     singleflight.Group
}

// NewRobotsGate builds a RobotsPolicy. When respect is false the returned
// policy allows everything.
func NewRobotsGate(respect bool, userAgent string, timeout time.Duration, logger *zap.Logger) RobotsPolicy {
	if !respect {
		return allowAllPolicy{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RobotsGate{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Allowed implements RobotsPolicy.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	data := g.policyFor(ctx, parsed)
	group := data.FindGroup(g.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

func (g *RobotsGate) policyFor(ctx context.Context, parsed *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	if cached, ok := g.cache.Load(key); ok {
		return cached.(*robotstxt.RobotsData)
	}
	v, _, _ := g.group.Do(key, func() (any, error) {
		if cached, ok := g.cache.Load(key); ok {
			return cached, nil
		}
		data := g.retrieve(ctx, parsed)
		g.cache.Store(key, data)
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

func (g *RobotsGate) retrieve(ctx context.Context, parsed *url.URL) *robotstxt.RobotsData {
	robotsURL := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return permissivePolicy()
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("robots fetch failed; allowing origin",
			zap.String("host", parsed.Host), zap.Error(err))
		return permissivePolicy()
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	// The robotstxt library maps 5xx to disallow-all; a broken robots
	// endpoint must not block the origin, so treat it as absent instead.
	if resp.StatusCode >= 500 {
		g.logger.Warn("robots endpoint errored; allowing origin",
			zap.String("host", parsed.Host), zap.Int("status", resp.StatusCode))
		return permissivePolicy()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return permissivePolicy()
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		g.logger.Warn("robots parse failed; allowing origin",
			zap.String("host", parsed.Host), zap.Error(err))
		return permissivePolicy()
	}
	return data
}

func permissivePolicy() *robotstxt.RobotsData {
	data, err := robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	if err != nil {
		return &robotstxt.RobotsData{}
	}
	return data
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(context.Context, string) bool { return true }
