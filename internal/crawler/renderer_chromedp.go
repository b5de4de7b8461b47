package crawler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromedpRenderer renders pages with headless Chrome. The browser is shared
// across the crawl, launched lazily on first use, and torn down by Close.
// Parallel sessions are bounded by a semaphore independent of the governor.
type ChromedpRenderer struct {
	mu            sync.Mutex
	started       bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	sem       chan struct{}
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger
}

// NewChromedpRenderer builds a renderer; no browser process is started yet.
func NewChromedpRenderer(userAgent string, timeout time.Duration, maxSessions int, logger *zap.Logger) *ChromedpRenderer {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromedpRenderer{
		sem:       make(chan struct{}, maxSessions),
		timeout:   timeout,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Warmup eagerly launches the browser. Used at startup when the render policy
// makes rendering mandatory, so a missing Chrome fails fast.
func (r *ChromedpRenderer) Warmup() error {
	return r.ensure()
}

func (r *ChromedpRenderer) ensure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(r.userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("chromedp warmup: %w", err)
	}

	r.allocCancel = allocCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel
	r.started = true
	return nil
}

// Render navigates a fresh tab to the URL and returns the DOM snapshot.
func (r *ChromedpRenderer) Render(ctx context.Context, rawURL string) (Page, error) {
	if err := r.ensure(); err != nil {
		return Page{}, err
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return Page{}, fmt.Errorf("acquire render session: %w", ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTask()

	stop := context.AfterFunc(ctx, cancelTask)
	defer stop()

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(r.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return Page{}, fmt.Errorf("chromedp run: %w", err)
	}

	return Page{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       []byte(html),
		Rendered:   true,
	}, nil
}

// Close tears down the browser and allocator if they were started.
func (r *ChromedpRenderer) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil
	}
	r.browserCancel()
	r.allocCancel()
	r.started = false
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}
