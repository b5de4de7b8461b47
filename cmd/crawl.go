package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"siteharvest/internal/api"
	"siteharvest/internal/config"
	"siteharvest/internal/crawler"
	"siteharvest/internal/extract"
	"siteharvest/internal/index"
	"siteharvest/internal/logging"
	"siteharvest/internal/publish"
	"siteharvest/internal/storage"
	"siteharvest/internal/storage/gcs"
)

func init() {
	crawlCmd := newCrawlCmd()
	rootCmd.AddCommand(crawlCmd)
}

func newCrawlCmd() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a crawl from the configured seed URLs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("seeds", nil, "seed URLs to start from")
	flags.String("output-dir", "output", "directory for saved pages, assets and records")
	flags.StringSlice("allowed-domains", nil, "domains the crawl may visit (empty allows all)")
	flags.Int("max-pages", 200, "maximum number of pages to process")
	flags.Int("max-depth", 3, "maximum link depth from the seeds")
	flags.Int("concurrency", 8, "maximum concurrent fetches across all origins")
	flags.Int("per-origin-concurrency", 2, "maximum concurrent fetches per origin")
	flags.Duration("delay", 500*time.Millisecond, "minimum delay between requests to one origin")
	flags.Duration("request-timeout", 20*time.Second, "HTTP request timeout")
	flags.String("user-agent", "siteharvest/1.0", "User-Agent header for all requests")
	flags.Bool("respect-robots", true, "honor robots.txt rules")
	flags.String("render-policy", "auto", "when to render pages in a browser: auto, always, never")
	flags.Bool("download-images", false, "download images referenced by processed pages")
	flags.Int("port", 0, "ops HTTP server port (0 disables)")

	bind := func(key, flag string) {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
	bind("crawl.seeds", "seeds")
	bind("crawl.output_dir", "output-dir")
	bind("crawl.allowed_domains", "allowed-domains")
	bind("crawl.max_pages", "max-pages")
	bind("crawl.max_depth", "max-depth")
	bind("crawl.concurrency", "concurrency")
	bind("crawl.per_origin_concurrency", "per-origin-concurrency")
	bind("crawl.delay", "delay")
	bind("crawl.request_timeout", "request-timeout")
	bind("crawl.user_agent", "user-agent")
	bind("crawl.respect_robots", "respect-robots")
	bind("crawl.render_policy", "render-policy")
	bind("crawl.download_images", "download-images")
	bind("server.port", "port")

	return cmd
}

func runCrawl(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	crawlID := uuid.NewString()
	logger.Info("starting crawl",
		zap.String("crawl_id", crawlID),
		zap.Strings("seeds", cfg.Crawl.Seeds),
		zap.Int("max_pages", cfg.Crawl.MaxPages),
		zap.Int("max_depth", cfg.Crawl.MaxDepth),
	)

	policy, err := crawler.ParseRenderPolicy(cfg.Crawl.RenderPolicy)
	if err != nil {
		return err
	}

	fetcher, err := crawler.NewCollyFetcher(cfg.Crawl.UserAgent, cfg.Crawl.RequestTimeout, cfg.Crawl.Concurrency, logger)
	if err != nil {
		return fmt.Errorf("build fetcher: %w", err)
	}

	frontier := crawler.NewFrontier(cfg.Crawl.QueueDepth)

	var renderer crawler.Renderer
	if policy != crawler.RenderNever {
		cr := crawler.NewChromedpRenderer(cfg.Crawl.UserAgent, cfg.Render.Timeout, cfg.Render.MaxSessions, logger)
		if policy == crawler.RenderAlways {
			if err := cr.Warmup(); err != nil {
				return fmt.Errorf("render policy is always but the browser failed to start: %w", err)
			}
		}
		renderer = cr
	}

	pipeline := crawler.NewFetchPipeline(fetcher, renderer, crawler.NewHeuristicDetector(), policy, logger)
	robots := crawler.NewRobotsGate(cfg.Crawl.RespectRobots, cfg.Crawl.UserAgent, cfg.Crawl.RequestTimeout, logger)

	var mirror storage.BlobStore
	if cfg.Storage.GCSBucket != "" {
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client: %w", err)
		}
		defer func() { _ = client.Close() }()
		mirror, err = gcs.New(client, cfg.Storage.GCSBucket, cfg.Storage.Prefix)
		if err != nil {
			return err
		}
	}
	store, err := storage.NewManager(cfg.Crawl.OutputDir, mirror, logger)
	if err != nil {
		return err
	}

	var recordIndex crawler.RecordIndex
	if cfg.Index.DSN != "" {
		idx, err := index.New(ctx, index.Config{DSN: cfg.Index.DSN, Table: cfg.Index.Table})
		if err != nil {
			return err
		}
		defer idx.Close()
		recordIndex = idx
	}

	var publisher crawler.Publisher
	if cfg.Publish.Topic != "" {
		ps, err := publish.NewPubSub(ctx, cfg.Publish.ProjectID, cfg.Publish.Topic)
		if err != nil {
			return err
		}
		defer func() { _ = ps.Close() }()
		publisher = ps
	}

	proc := crawler.NewProcessor(crawler.ProcessorConfig{
		CrawlID:        crawlID,
		AllowedDomains: cfg.Crawl.AllowedDomains,
		DownloadImages: cfg.Crawl.DownloadImages,
		UserAgent:      cfg.Crawl.UserAgent,
		RequestTimeout: cfg.Crawl.RequestTimeout,
		PublishTopic:   cfg.Publish.Topic,
	}, extract.New(), store, frontier, recordIndex, publisher, logger)

	engine := crawler.NewEngine(crawler.Config{
		Seeds:                cfg.Crawl.Seeds,
		AllowedDomains:       cfg.Crawl.AllowedDomains,
		MaxPages:             cfg.Crawl.MaxPages,
		MaxDepth:             cfg.Crawl.MaxDepth,
		Concurrency:          cfg.Crawl.Concurrency,
		PerOriginConcurrency: cfg.Crawl.PerOriginConcurrency,
		QueueDepth:           cfg.Crawl.QueueDepth,
		Delay:                cfg.Crawl.Delay,
	}, crawlID, frontier, pipeline, proc, robots, logger)
	if renderer != nil {
		engine.AddCloser(renderer.Close)
	}

	if cfg.Server.Port > 0 {
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: api.NewServer(engine, logger).Handler(),
		}
		go func() {
			logger.Info("ops server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	err = engine.Run(ctx)
	snap := engine.Snapshot()
	logger.Info("crawl finished",
		zap.String("crawl_id", crawlID),
		zap.Int64("pages_processed", snap.PagesProcessed),
		zap.Int64("enqueued", snap.Enqueued),
		zap.Int64("dropped", snap.Dropped),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
