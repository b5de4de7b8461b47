package crawler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Worker pool sizing bounds and the bounded wait used when polling the
// frontier for work.
const (
	minWorkers  = 2
	maxWorkers  = 32
	dequeueWait = 500 * time.Millisecond
)

// Config holds the settings for one crawl session. Decoupled from Viper so
// the engine can be constructed directly in tests.
type Config struct {
	Seeds                []string
	AllowedDomains       []string
	MaxPages             int
	MaxDepth             int
	Concurrency          int
	PerOriginConcurrency int
	QueueDepth           int
	Delay                time.Duration
}

// Engine owns the shared crawl state and drives the worker pool. All mutable
// state (frontier sets, permit pools, budget) belongs to one Engine instance;
// workers receive it by reference.
type Engine struct {
	cfg      Config
	crawlID  string
	frontier *Frontier
	governor *Governor
	robots   RobotsPolicy
	pipeline *FetchPipeline
	proc     *Processor
	logger   *zap.Logger

	budget    *pageBudget
	processed atomic.Int64
	closers   []func(context.Context) error
}

// NewEngine assembles an engine around an existing frontier so the processor
// and engine share the same traversal state.
func NewEngine(cfg Config, crawlID string, frontier *Frontier, pipeline *FetchPipeline, proc *Processor, robots RobotsPolicy, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		crawlID:  crawlID,
		frontier: frontier,
		governor: NewGovernor(cfg.Concurrency, cfg.PerOriginConcurrency, cfg.Delay),
		robots:   robots,
		pipeline: pipeline,
		proc:     proc,
		logger:   logger,
		budget:   newPageBudget(cfg.MaxPages),
	}
}

// AddCloser registers a shared resource released after the crawl finishes.
func (e *Engine) AddCloser(fn func(context.Context) error) {
	e.closers = append(e.closers, fn)
}

// Run seeds the frontier and blocks until the page budget is exhausted and
// the frontier has drained, or the context is cancelled. Remaining workers
// are cancelled and awaited, then shared resources are released.
func (e *Engine) Run(ctx context.Context) error {
	for _, seed := range e.cfg.Seeds {
		norm, ok := Normalize(seed, seed)
		if !ok {
			e.logger.Warn("skipping invalid seed", zap.String("seed", seed))
			continue
		}
		e.frontier.Enqueue(Task{URL: norm, Depth: 0})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		e.frontier.Wait()
		close(drained)
	}()

	workers := clamp(e.cfg.Concurrency, minWorkers, maxWorkers)
	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			e.worker(gctx, drained)
			return nil
		})
	}

	select {
	case <-drained:
	case <-gctx.Done():
	}
	cancel()
	_ = g.Wait()

	e.close(context.WithoutCancel(ctx))
	return ctx.Err()
}

func (e *Engine) worker(ctx context.Context, drained <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-drained:
			return
		default:
		}
		task, ok := e.frontier.Dequeue(ctx, dequeueWait)
		if !ok {
			continue
		}
		e.handle(ctx, task)
		e.frontier.TaskDone()
	}
}

// handle applies the admission checks in order, then runs the fetch pipeline
// and the page processor under governor permits. A failed check discards the
// task with no side effects beyond the visited mark.
func (e *Engine) handle(ctx context.Context, task Task) {
	if e.budget.Exhausted() {
		return
	}
	if task.Depth > e.cfg.MaxDepth {
		return
	}
	if !IsAllowedDomain(task.URL, e.cfg.AllowedDomains) {
		return
	}
	if !e.frontier.MarkVisited(task.URL) {
		return
	}
	if !e.robots.Allowed(ctx, task.URL) {
		robotsDenied.Inc()
		e.logger.Debug("blocked by robots", zap.String("url", task.URL))
		return
	}
	if !e.budget.Reserve() {
		return
	}

	release, err := e.governor.Acquire(ctx, Origin(task.URL))
	if err != nil {
		e.budget.Release()
		return
	}
	defer release()

	page, ok := e.pipeline.Fetch(ctx, task.URL)
	if !ok {
		fetchErrors.Inc()
		e.budget.Release()
		return
	}

	if err := e.proc.Process(ctx, task, page); err != nil {
		e.logger.Error("process page failed", zap.String("url", task.URL), zap.Error(err))
		e.budget.Release()
		return
	}

	e.processed.Add(1)
	pagesProcessed.Inc()
	e.logger.Debug("page processed",
		zap.String("url", task.URL),
		zap.Int("depth", task.Depth),
		zap.Int64("total", e.processed.Load()),
	)
}

func (e *Engine) close(ctx context.Context) {
	for _, fn := range e.closers {
		if err := fn(ctx); err != nil {
			e.logger.Warn("close resource", zap.Error(err))
		}
	}
}

// Snapshot returns current crawl counters for the ops surface.
func (e *Engine) Snapshot() Progress {
	enqueued, visited, dropped := e.frontier.Counts()
	return Progress{
		CrawlID:        e.crawlID,
		PagesProcessed: e.processed.Load(),
		Enqueued:       enqueued,
		Visited:        visited,
		FrontierLen:    e.frontier.Len(),
		Dropped:        dropped,
	}
}

// pageBudget is a reserve/commit counter for the page budget: a worker
// reserves a slot before fetching and releases it on soft failure, so the
// number of processed pages can never exceed the configured maximum.
type pageBudget struct {
	max  int64
	used atomic.Int64
}

func newPageBudget(maxPages int) *pageBudget {
	if maxPages <= 0 {
		maxPages = 1
	}
	return &pageBudget{max: int64(maxPages)}
}

func (b *pageBudget) Reserve() bool {
	if b.used.Add(1) > b.max {
		b.used.Add(-1)
		return false
	}
	return true
}

func (b *pageBudget) Release() { b.used.Add(-1) }

func (b *pageBudget) Exhausted() bool { return b.used.Load() >= b.max }
